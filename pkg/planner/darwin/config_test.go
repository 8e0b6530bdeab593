package darwin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caidan/caidan/pkg/errors"
)

const fullConfig = `
population_size: 20
nb_generations: 50
max_lost_generations: 10
oriented_crossover_rate_start: 0.1
oriented_crossover_rate_end: 0.9
oriented_mutation_rate_start: 0.2
oriented_mutation_rate_end: 0.8
crossover_rate: 0.4
mutation_rate: 0.6
ratio_change_rate: 0.3
selection: rankproportionate
`

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"种群规模为0", func(c *Config) { c.PopulationSize = 0 }},
		{"代数为0", func(c *Config) { c.NbGenerations = 0 }},
		{"比例超过1", func(c *Config) { c.CrossoverRate = 1.5 }},
		{"比例为负", func(c *Config) { c.OrientedMutationRateEnd = -0.1 }},
		{"未知选择策略", func(c *Config) { c.Selection = "tournament" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeConfig))
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader(fullConfig))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PopulationSize)
	assert.Equal(t, 50, cfg.NbGenerations)
	assert.Equal(t, 0.3, cfg.RatioChangeRate)
	assert.Equal(t, SelectionRankProportionate, cfg.Selection)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"空文件", ""},
		{"缺少配置项", "population_size: 10\n"},
		{"未知配置项", fullConfig + "elite_count: 2\n"},
		{"类型错误", strings.Replace(fullConfig, "population_size: 20", "population_size: many", 1)},
		{"取值无效", strings.Replace(fullConfig, "mutation_rate: 0.6", "mutation_rate: 2", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeConfig), "err = %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darwin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxLostGenerations)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errors.CodeConfig))
}

func TestOverridesApply(t *testing.T) {
	pop := 8
	sel := SelectionRankedRandom
	o := &Overrides{PopulationSize: &pop, Selection: &sel}

	cfg := o.Apply(DefaultConfig())
	assert.Equal(t, 8, cfg.PopulationSize)
	assert.Equal(t, SelectionRankedRandom, cfg.Selection)
	assert.Equal(t, DefaultConfig().NbGenerations, cfg.NbGenerations)

	var nilOverrides *Overrides
	assert.Equal(t, DefaultConfig(), nilOverrides.Apply(DefaultConfig()))
}
