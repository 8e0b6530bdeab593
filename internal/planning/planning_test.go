package planning

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caidan/caidan/internal/catalog"
	"github.com/caidan/caidan/internal/queue"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/constraint"
	"github.com/caidan/caidan/pkg/planner/darwin"
)

// 菜品类型 1：食谱 1、2、3（价格 2、4、6，3 不健康）
// 菜品类型 2：食谱 11、12、13、14（价格 1、3、5、2，14 需要厨具 9）
const testCatalog = `{
  "recipes": [
    {"id": 1, "name": "清炒时蔬", "dish_types": [1], "data": {"price": 2, "prep_minutes": 5}},
    {"id": 2, "name": "红烧豆腐", "dish_types": [1], "data": {"price": 4, "prep_minutes": 10}},
    {"id": 3, "name": "炸鸡", "dish_types": [1], "perceived_healthy": false, "data": {"price": 6, "prep_minutes": 30}},
    {"id": 11, "name": "米饭", "dish_types": [2], "data": {"price": 1}},
    {"id": 12, "name": "面条", "dish_types": [2], "data": {"price": 3}},
    {"id": 13, "name": "饺子", "dish_types": [2], "data": {"price": 5}},
    {"id": 14, "name": "烤饼", "dish_types": [2], "ustensils": [9], "data": {"price": 2}}
  ]
}`

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.LoadJSON([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(newTestCatalog(t), opts...)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

// newRequest 两天各一餐，每餐一道类型1 + 一道类型2，每天价格上限 maxPrice
func newRequest(solver string, maxPrice float64) *PlanRequest {
	var dishes []DishInput
	for day := int64(1); day <= 2; day++ {
		for dt := int64(1); dt <= 2; dt++ {
			dishes = append(dishes, DishInput{
				ID:         (day-1)*2 + dt,
				DayID:      day,
				MealID:     day,
				MealTypeID: 1,
				Elements:   []ElementInput{{DishTypeID: dt}},
				ProfileIDs: []int64{1},
			})
		}
	}
	return &PlanRequest{
		Dishes:        dishes,
		Profiles:      []ProfileInput{{ID: 1, Ratio: 1}},
		MainProfileID: 1,
		Constraints: []constraint.Descriptor{
			{Type: constraint.TypeNutrient, Key: model.KeyPrice, Max: maxPrice, Cost: 10},
		},
		Solver: solver,
		Seed:   7,
		Darwin: &darwin.Overrides{
			PopulationSize:     intPtr(12),
			NbGenerations:      intPtr(40),
			MaxLostGenerations: intPtr(15),
		},
	}
}

func recipeType(id int64) int64 {
	if id < 10 {
		return 1
	}
	return 2
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		solver string
	}{
		{"随机求解", "naive"},
		{"遗传算法", "darwin"},
		{"默认求解器", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			resp, err := s.Plan(context.Background(), newRequest(tt.solver, 20))
			require.NoError(t, err)

			assert.NotEmpty(t, resp.RunID)
			assert.Zero(t, resp.Score, "每天最贵的组合也不超过上限")
			assert.False(t, resp.Partial)
			require.Len(t, resp.Dishes, 4)
			for i, d := range resp.Dishes {
				assert.Equal(t, int64(i+1), d.DishID)
				require.Len(t, d.RecipeIDs, 1)
				wantType := int64(2)
				if d.DishID%2 == 1 {
					wantType = 1
				}
				assert.Equal(t, wantType, recipeType(d.RecipeIDs[0]))
				assert.Equal(t, 1.0, d.Ratio)
				assert.True(t, d.Mutable)
				assert.True(t, d.FullyFiltered)
			}
			require.Len(t, resp.Constraints, 1)
			assert.Zero(t, resp.Constraints[0].Score)
			assert.Empty(t, resp.Constraints[0].Rules)
			require.NotNil(t, resp.Statistics)
		})
	}
}

func TestPlanNaiveDeterministic(t *testing.T) {
	s := newTestService(t)
	ids := func() []int64 {
		resp, err := s.Plan(context.Background(), newRequest("naive", 20))
		require.NoError(t, err)
		var out []int64
		for _, d := range resp.Dishes {
			out = append(out, d.RecipeIDs...)
		}
		return out
	}
	assert.Equal(t, ids(), ids(), "相同种子得到相同方案")
}

func TestPlanFilters(t *testing.T) {
	s := newTestService(t)
	for seed := int64(1); seed <= 20; seed++ {
		req := newRequest("naive", 20)
		req.Seed = seed
		req.Filters = []FilterInput{
			{Type: FilterNonHealthy},
			{Type: FilterUstensil, UstensilID: 9},
			{Type: FilterExcludeRecipe, DishID: 2, RecipeID: 11},
		}
		resp, err := s.Plan(context.Background(), req)
		require.NoError(t, err)
		for _, d := range resp.Dishes {
			assert.NotContains(t, d.RecipeIDs, int64(3), "不健康食谱被过滤")
			assert.NotContains(t, d.RecipeIDs, int64(14), "需要厨具 9 的食谱被过滤")
			if d.DishID == 2 {
				assert.NotContains(t, d.RecipeIDs, int64(11))
			}
			assert.True(t, d.FullyFiltered)
		}
	}
}

func TestPlanRelaxedFilter(t *testing.T) {
	s := newTestService(t)
	req := newRequest("naive", 20)
	req.Filters = []FilterInput{{Type: FilterDataRange, Key: model.KeyPrice, Min: 100}}

	resp, err := s.Plan(context.Background(), req)
	require.NoError(t, err, "可移除的过滤器清空定义域时放宽而不是失败")
	for _, d := range resp.Dishes {
		assert.False(t, d.FullyFiltered)
		assert.Len(t, d.RecipeIDs, 1)
	}
	assert.Equal(t, 4, resp.RelaxedDishes())
}

func TestPlanDishTimeFilter(t *testing.T) {
	s := newTestService(t)
	for seed := int64(1); seed <= 10; seed++ {
		req := newRequest("naive", 20)
		req.Seed = seed
		req.Filters = []FilterInput{
			{Type: FilterDishTime, DishID: 1, MaxPrep: 8, MaxCook: 60, MaxRest: 60},
		}
		resp, err := s.Plan(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, resp.Dishes[0].RecipeIDs, "只有食谱 1 的准备时间不超过 8 分钟")
	}
}

func TestPlanFixedDish(t *testing.T) {
	s := newTestService(t)
	req := newRequest("darwin", 20)
	req.FixedDishes = []int64{1}
	req.Initial = []Assignment{{DishID: 1, RecipeIDs: []int64{3}}}

	resp, err := s.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, resp.Dishes[0].RecipeIDs)
	assert.False(t, resp.Dishes[0].Mutable)
	assert.True(t, resp.Dishes[1].Mutable)
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PlanRequest)
		code   errors.Code
	}{
		{"没有菜品", func(r *PlanRequest) { r.Dishes = nil }, errors.CodeValidationFail},
		{"未知求解器", func(r *PlanRequest) { r.Solver = "annealing" }, errors.CodeValidationFail},
		{"未知过滤器", func(r *PlanRequest) { r.Filters = []FilterInput{{Type: "spicy"}} }, errors.CodeValidationFail},
		{"未知约束类型", func(r *PlanRequest) { r.Constraints[0].Type = "calories" }, errors.CodeValidationFail},
		{"未知数据键", func(r *PlanRequest) { r.Constraints[0].Key = "sugar" }, errors.CodeUnknownDataKey},
		{"重复菜品", func(r *PlanRequest) { r.Dishes[1].ID = 1 }, errors.CodeConfig},
		{"缺少用餐者系数", func(r *PlanRequest) { r.Dishes[0].ProfileIDs = []int64{1, 2} }, errors.CodeMissingProfileRatio},
		{"未知优先食谱", func(r *PlanRequest) { r.Favorites = []int64{99} }, errors.CodeNotFound},
		{"不可变菜品缺少初始食谱", func(r *PlanRequest) { r.FixedDishes = []int64{1} }, errors.CodeInvalidInput},
		{"初始方案引用未知食谱", func(r *PlanRequest) {
			r.Initial = []Assignment{{DishID: 1, RecipeIDs: []int64{42}}}
		}, errors.CodeNotFound},
		{"菜品类型没有食谱", func(r *PlanRequest) { r.Dishes[0].Elements[0].DishTypeID = 7 }, errors.CodeEmptyDomain},
		{"未知过滤数据键", func(r *PlanRequest) {
			r.Filters = []FilterInput{{Type: FilterDataRange, Key: "sugar", Max: 10}}
		}, errors.CodeUnknownDataKey},
		{"遗传算法参数越界", func(r *PlanRequest) { r.Darwin.PopulationSize = intPtr(0) }, errors.CodeValidationFail},
	}
	s := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest("darwin", 20)
			tt.modify(req)
			_, err := s.Plan(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "错误码 = %s, want %s (%v)", errors.GetCode(err), tt.code, err)
		})
	}
}

func TestValidationFields(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	req := newRequest("naive", 20)
	req.Dishes[0].Elements = nil
	req.Profiles[0].Ratio = 0

	err = v.Struct(req)
	require.Error(t, err)
	appErr := errors.From(err)
	assert.Equal(t, errors.CodeValidationFail, appErr.Code)
	assert.Contains(t, appErr.Fields, "dishes[0].elements")
	assert.Contains(t, appErr.Fields, "profiles[0].ratio")
}

func TestPlanCancelled(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 每天最便宜也要 3，得分不可能为 0
	resp, err := s.Plan(ctx, newRequest("darwin", 2.5))
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Positive(t, resp.Score)
	assert.Equal(t, darwin.StopCancelled, resp.Statistics.StopReason)
}

func TestPlanProfile(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, WithProfileDir(dir))

	resp, err := s.Plan(context.Background(), newRequest("darwin", 5))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, resp.RunID+".yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "time: "))
	assert.Contains(t, string(data), "data:\n")
}

func TestEvaluate(t *testing.T) {
	s := newTestService(t)
	req := newRequest("", 5)
	req.Initial = []Assignment{
		{DishID: 1, RecipeIDs: []int64{3}},
		{DishID: 2, RecipeIDs: []int64{13}},
		{DishID: 3, RecipeIDs: []int64{1}},
		{DishID: 4, RecipeIDs: []int64{11}},
	}

	resp, err := s.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Positive(t, resp.Score, "第一天价格 11 超过上限 5")
	require.Len(t, resp.Constraints, 1)
	assert.Equal(t, resp.Score, resp.Constraints[0].Score)
	require.Len(t, resp.Constraints[0].Rules, 1, "只有第一天的规则未满足")
	assert.Equal(t, []int64{3}, resp.Dishes[0].RecipeIDs)
	assert.Equal(t, 1, resp.Statistics.Evaluations)
}

func TestEvaluateErrors(t *testing.T) {
	s := newTestService(t)

	_, err := s.Evaluate(context.Background(), newRequest("", 5))
	assert.True(t, errors.Is(err, errors.CodeInvalidInput), "没有初始方案")

	req := newRequest("", 5)
	req.Initial = []Assignment{{DishID: 1, RecipeIDs: []int64{1}}}
	_, err = s.Evaluate(context.Background(), req)
	assert.True(t, errors.Is(err, errors.CodeInvalidSolution), "方案未覆盖全部菜品: %v", err)
}

func TestPlanBatch(t *testing.T) {
	s := newTestService(t, WithWorkers(2))
	bad := newRequest("naive", 20)
	bad.Profiles = nil

	results := s.PlanBatch(context.Background(), []*PlanRequest{
		newRequest("naive", 20),
		bad,
		newRequest("darwin", 20),
	})
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Response)
	assert.Nil(t, results[0].Error)
	assert.Nil(t, results[1].Response)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, errors.CodeValidationFail, results[1].Error.Code)
	assert.NotNil(t, results[2].Response)
	assert.Equal(t, "darwin", results[2].Response.Solver)
}

type fakePublisher struct {
	jobs []*queue.Job
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, job *queue.Job) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []model.RunStatus
}

func (r *fakeRecorder) Save(_ context.Context, run *model.PlanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, run.Status)
	return nil
}

func TestSubmitAndHandleJob(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	s := newTestService(t, WithPublisher(pub), WithRecorder(rec))
	ctx := context.Background()

	runID, err := s.Submit(ctx, newRequest("naive", 20))
	require.NoError(t, err)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, runID, pub.jobs[0].RunID)

	entry, err := s.Result(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunQueued, entry.Status)

	require.NoError(t, s.HandleJob(ctx, pub.jobs[0]))

	entry, err = s.Result(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, entry.Status)
	var resp PlanResponse
	require.NoError(t, json.Unmarshal(entry.Result, &resp))
	assert.Equal(t, runID, resp.RunID)
	assert.Len(t, resp.Dishes, 4)

	assert.Equal(t, []model.RunStatus{model.RunQueued, model.RunSucceeded}, rec.statuses)
}

func TestHandleJobFailures(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	err := s.HandleJob(ctx, &queue.Job{RunID: "not-a-uuid", Request: json.RawMessage(`{}`)})
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))

	// 规划失败记录为失败状态，消息仍被确认
	req := newRequest("naive", 20)
	req.Favorites = []int64{99}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	runID := "5b0b8a0e-6f38-4c1e-9d57-0a1e5a3b9c11"
	require.NoError(t, s.HandleJob(ctx, &queue.Job{RunID: runID, Request: raw}))

	entry, err := s.Result(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, entry.Status)
	assert.NotEmpty(t, entry.Error)
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()

	s := newTestService(t)
	_, err := s.Submit(ctx, newRequest("naive", 20))
	assert.True(t, errors.Is(err, errors.CodeQueueFailed), "未启用异步")

	pub := &fakePublisher{err: errors.New(errors.CodeInternal, "broker down")}
	s = newTestService(t, WithPublisher(pub))
	_, err = s.Submit(ctx, newRequest("naive", 20))
	assert.True(t, errors.Is(err, errors.CodeQueueFailed))

	_, err = s.Result(ctx, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
