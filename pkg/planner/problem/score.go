package problem

// Score 一次评估的结果
type Score struct {
	Total        int64   `json:"total"`
	ByRule       []int64 `json:"by_rule"`
	ByConstraint []int64 `json:"by_constraint"`
}

func newScore(nbRules, nbConstraints int) *Score {
	return &Score{
		ByRule:       make([]int64, nbRules),
		ByConstraint: make([]int64, nbConstraints),
	}
}

// Rule 返回规则得分
func (s *Score) Rule(id int) int64 {
	if id < 0 || id >= len(s.ByRule) {
		return 0
	}
	return s.ByRule[id]
}

// Constraint 返回约束得分
func (s *Score) Constraint(id int) int64 {
	if id < 0 || id >= len(s.ByConstraint) {
		return 0
	}
	return s.ByConstraint[id]
}
