// Package darwin 实现菜单规划的遗传算法
package darwin

import (
	"bytes"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caidan/caidan/pkg/errors"
)

// 选择策略名称
const (
	SelectionElitism           = "elitism"
	SelectionRankProportionate = "rankproportionate"
	SelectionRankedRandom      = "rankedrandom"
)

// Config 遗传算法配置
type Config struct {
	PopulationSize             int     `yaml:"population_size" json:"population_size"`                             // 种群规模
	NbGenerations              int     `yaml:"nb_generations" json:"nb_generations"`                               // 最大代数
	MaxLostGenerations         int     `yaml:"max_lost_generations" json:"max_lost_generations"`                   // 最优解连续未改进的最大代数
	OrientedCrossoverRateStart float64 `yaml:"oriented_crossover_rate_start" json:"oriented_crossover_rate_start"` // 定向交叉比例（开始）
	OrientedCrossoverRateEnd   float64 `yaml:"oriented_crossover_rate_end" json:"oriented_crossover_rate_end"`     // 定向交叉比例（结束）
	OrientedMutationRateStart  float64 `yaml:"oriented_mutation_rate_start" json:"oriented_mutation_rate_start"`
	OrientedMutationRateEnd    float64 `yaml:"oriented_mutation_rate_end" json:"oriented_mutation_rate_end"`
	CrossoverRate              float64 `yaml:"crossover_rate" json:"crossover_rate"`
	MutationRate               float64 `yaml:"mutation_rate" json:"mutation_rate"`
	RatioChangeRate            float64 `yaml:"ratio_change_rate" json:"ratio_change_rate"` // 修复时调整份量而非替换食谱的概率
	Selection                  string  `yaml:"selection" json:"selection"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		PopulationSize:             30,
		NbGenerations:              200,
		MaxLostGenerations:         50,
		OrientedCrossoverRateStart: 0.2,
		OrientedCrossoverRateEnd:   0.8,
		OrientedMutationRateStart:  0.3,
		OrientedMutationRateEnd:    0.9,
		CrossoverRate:              0.5,
		MutationRate:               0.5,
		RatioChangeRate:            0.2,
		Selection:                  SelectionElitism,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	ve := &errors.ValidationErrors{}
	if c.PopulationSize <= 0 {
		ve.Add("population_size", "必须大于0")
	}
	if c.NbGenerations <= 0 {
		ve.Add("nb_generations", "必须大于0")
	}
	if c.MaxLostGenerations < 0 {
		ve.Add("max_lost_generations", "不能为负数")
	}
	for _, r := range []struct {
		key string
		v   float64
	}{
		{"oriented_crossover_rate_start", c.OrientedCrossoverRateStart},
		{"oriented_crossover_rate_end", c.OrientedCrossoverRateEnd},
		{"oriented_mutation_rate_start", c.OrientedMutationRateStart},
		{"oriented_mutation_rate_end", c.OrientedMutationRateEnd},
		{"crossover_rate", c.CrossoverRate},
		{"mutation_rate", c.MutationRate},
		{"ratio_change_rate", c.RatioChangeRate},
	} {
		if r.v < 0 || r.v > 1 {
			ve.Add(r.key, "必须在 [0, 1] 之间")
		}
	}
	if _, err := NewSelection(c.Selection); err != nil {
		ve.Add("selection", err.Error())
	}
	if ve.HasErrors() {
		return errors.Wrap(ve, errors.CodeConfig, "遗传算法配置无效")
	}
	return nil
}

// Overrides 部分配置，nil 字段表示未设置
type Overrides struct {
	PopulationSize             *int     `yaml:"population_size" json:"population_size,omitempty" validate:"omitempty,gt=0"`
	NbGenerations              *int     `yaml:"nb_generations" json:"nb_generations,omitempty" validate:"omitempty,gt=0"`
	MaxLostGenerations         *int     `yaml:"max_lost_generations" json:"max_lost_generations,omitempty" validate:"omitempty,gte=0"`
	OrientedCrossoverRateStart *float64 `yaml:"oriented_crossover_rate_start" json:"oriented_crossover_rate_start,omitempty" validate:"omitempty,gte=0,lte=1"`
	OrientedCrossoverRateEnd   *float64 `yaml:"oriented_crossover_rate_end" json:"oriented_crossover_rate_end,omitempty" validate:"omitempty,gte=0,lte=1"`
	OrientedMutationRateStart  *float64 `yaml:"oriented_mutation_rate_start" json:"oriented_mutation_rate_start,omitempty" validate:"omitempty,gte=0,lte=1"`
	OrientedMutationRateEnd    *float64 `yaml:"oriented_mutation_rate_end" json:"oriented_mutation_rate_end,omitempty" validate:"omitempty,gte=0,lte=1"`
	CrossoverRate              *float64 `yaml:"crossover_rate" json:"crossover_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	MutationRate               *float64 `yaml:"mutation_rate" json:"mutation_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	RatioChangeRate            *float64 `yaml:"ratio_change_rate" json:"ratio_change_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Selection                  *string  `yaml:"selection" json:"selection,omitempty" validate:"omitempty,oneof=elitism rankproportionate rankedrandom"`
}

// Apply 用已设置的字段覆盖配置
func (o *Overrides) Apply(c Config) Config {
	if o == nil {
		return c
	}
	setInt(&c.PopulationSize, o.PopulationSize)
	setInt(&c.NbGenerations, o.NbGenerations)
	setInt(&c.MaxLostGenerations, o.MaxLostGenerations)
	setFloat(&c.OrientedCrossoverRateStart, o.OrientedCrossoverRateStart)
	setFloat(&c.OrientedCrossoverRateEnd, o.OrientedCrossoverRateEnd)
	setFloat(&c.OrientedMutationRateStart, o.OrientedMutationRateStart)
	setFloat(&c.OrientedMutationRateEnd, o.OrientedMutationRateEnd)
	setFloat(&c.CrossoverRate, o.CrossoverRate)
	setFloat(&c.MutationRate, o.MutationRate)
	setFloat(&c.RatioChangeRate, o.RatioChangeRate)
	if o.Selection != nil {
		c.Selection = *o.Selection
	}
	return c
}

// missing 返回未设置的配置项
func (o *Overrides) missing() []string {
	var keys []string
	check := func(key string, set bool) {
		if !set {
			keys = append(keys, key)
		}
	}
	check("population_size", o.PopulationSize != nil)
	check("nb_generations", o.NbGenerations != nil)
	check("max_lost_generations", o.MaxLostGenerations != nil)
	check("oriented_crossover_rate_start", o.OrientedCrossoverRateStart != nil)
	check("oriented_crossover_rate_end", o.OrientedCrossoverRateEnd != nil)
	check("oriented_mutation_rate_start", o.OrientedMutationRateStart != nil)
	check("oriented_mutation_rate_end", o.OrientedMutationRateEnd != nil)
	check("crossover_rate", o.CrossoverRate != nil)
	check("mutation_rate", o.MutationRate != nil)
	check("ratio_change_rate", o.RatioChangeRate != nil)
	check("selection", o.Selection != nil)
	return keys
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Load 从 YAML 读取完整配置，未知或缺少的配置项均为错误
func Load(r io.Reader) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var o Overrides
	if err := dec.Decode(&o); err != nil {
		if err == io.EOF {
			return Config{}, errors.Config("遗传算法配置为空")
		}
		return Config{}, errors.Wrap(err, errors.CodeConfig, "解析遗传算法配置失败")
	}
	if keys := o.missing(); len(keys) > 0 {
		return Config{}, errors.Config("缺少遗传算法配置项: %s", strings.Join(keys, ", "))
	}
	cfg := o.Apply(Config{})
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile 从文件读取配置
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CodeConfig, "读取遗传算法配置文件失败").WithField("path", path)
	}
	return Load(bytes.NewReader(data))
}
