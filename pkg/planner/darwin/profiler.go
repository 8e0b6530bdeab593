package darwin

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Profiler 记录最优得分随时间的变化，输出为 YAML：
//
//	time: 2024-01-01T00:00:00Z
//	options: {...}
//	data:
//	  - [12, 3400]
type Profiler struct {
	w     io.Writer
	start time.Time
	err   error
}

// NewProfiler 创建写入 w 的性能记录器
func NewProfiler(w io.Writer) *Profiler {
	return &Profiler{w: w}
}

type profileHeader struct {
	Time    string `yaml:"time"`
	Options Config `yaml:"options"`
}

// Start 写入文件头并开始计时
func (p *Profiler) Start(cfg Config) error {
	p.start = time.Now()
	header, err := yaml.Marshal(profileHeader{Time: p.start.Format(time.RFC3339), Options: cfg})
	if err != nil {
		return err
	}
	if _, err := p.w.Write(header); err != nil {
		return err
	}
	_, err = io.WriteString(p.w, "data:\n")
	return err
}

// Record 写入一个数据点：距开始的毫秒数与当前最优得分
func (p *Profiler) Record(score int64) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "  - [%d, %d]\n", time.Since(p.start).Milliseconds(), score)
}

// Err 写入过程中的第一个错误
func (p *Profiler) Err() error { return p.err }
