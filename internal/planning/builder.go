package planning

import (
	"strconv"

	"github.com/caidan/caidan/internal/catalog"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/constraint"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// Builder 在食谱目录上构造规划问题
type Builder struct {
	catalog *catalog.Catalog
}

// NewBuilder 创建问题构造器
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat}
}

// Build 按请求构造规划问题：菜单、过滤器、用餐者、约束、定义域、初始方案
// timeoutMs 为 0 表示不限求解时间
func (b *Builder) Build(req *PlanRequest, runID string, timeoutMs int64) (*problem.Problem, error) {
	m, err := b.buildMenu(req)
	if err != nil {
		return nil, err
	}

	p := problem.New(m, b.catalog.Indexer())
	p.SetLogger(logger.NewPlannerLogger().With("run_id", runID))

	filters, err := b.buildFilters(req.Filters)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		p.AddFilter(f)
	}

	p.SetMainProfile(req.MainProfileID)
	for _, prof := range req.Profiles {
		p.SetProfileRatio(prof.ID, prof.Ratio)
	}

	for i, d := range req.Constraints {
		c, err := constraint.Build(b.catalog.Indexer(), d)
		if err != nil {
			return nil, errors.Wrap(err, errors.GetCode(err), "约束无效").WithField("constraint", i)
		}
		if err := p.AddConstraint(c); err != nil {
			return nil, err
		}
	}

	if err := p.BuildDomains(b.catalog.Recipes()); err != nil {
		return nil, err
	}

	for _, id := range req.Favorites {
		if _, ok := b.catalog.Recipe(id); !ok {
			return nil, errors.NotFound("食谱", strconv.FormatInt(id, 10)).WithField("field", "favorites")
		}
		p.AddFavoriteRecipe(id)
	}

	if len(req.Initial) > 0 {
		s, err := b.buildInitial(p, req.Initial)
		if err != nil {
			return nil, err
		}
		p.SetInitialSolution(s)
		p.StickToInitial(req.StickToInitial)
	}
	if err := checkFixed(m, req); err != nil {
		return nil, err
	}

	p.SetMaxSolvingTime(timeoutMs)
	return p, nil
}

// buildMenu 登记菜品与菜品类型关系，除 fixed_dishes 外全部可变
func (b *Builder) buildMenu(req *PlanRequest) (*menu.Index, error) {
	m := menu.NewIndex()
	for _, in := range req.Dishes {
		mainType := in.MainDishTypeID
		if mainType == 0 {
			mainType = in.Elements[0].DishTypeID
		}
		d := model.NewDish(in.ID, in.DayID, in.MealID, in.MealTypeID, mainType, in.Optional, in.External)
		for _, el := range in.Elements {
			e := model.NewDishElement(el.DishTypeID)
			for _, tag := range el.RecipeTagIDs {
				e.AddRecipeTag(tag)
			}
			for _, tag := range el.FoodTagIDs {
				e.AddFoodTag(tag)
			}
			d.AddElement(e)
		}
		for _, id := range in.ProfileIDs {
			d.AddEaterProfile(id)
		}
		d.InitialRatio = in.Ratio
		if d.InitialRatio <= 0 {
			d.InitialRatio = 1
		}
		if err := m.AddDish(d); err != nil {
			return nil, err
		}
	}

	for _, rel := range req.Aggregations {
		m.AddAggregation(rel.Master, rel.Sub)
	}
	for _, rel := range req.Unions {
		m.AddUnion(rel.Master, rel.Sub)
	}
	for _, dt := range req.MonotonousDishTypes {
		m.AddMonotonousDishType(dt)
	}

	m.SetFullyMutable()
	for _, id := range req.FixedDishes {
		if _, ok := m.Dish(id); !ok {
			return nil, errors.NotFound("菜品", strconv.FormatInt(id, 10)).WithField("field", "fixed_dishes")
		}
		m.SetNotMutable(id)
	}
	return m, nil
}

// buildFilters 创建过滤器，同一请求中的菜品时间限制合并为一个过滤器
func (b *Builder) buildFilters(inputs []FilterInput) ([]menu.Filter, error) {
	di := b.catalog.Indexer()
	var (
		filters  []menu.Filter
		dishTime *menu.DishTimeFilter
	)
	for _, in := range inputs {
		switch in.Type {
		case FilterFoodTag:
			filters = append(filters, menu.NewTagFilter(in.ProfileID, in.FoodTagID, in.Critical))
		case FilterExcludeRecipe:
			filters = append(filters, &menu.ExcludeRecipeFilter{DishID: in.DishID, RecipeID: in.RecipeID})
		case FilterExcludeRecipeAll:
			filters = append(filters, &menu.ExcludeRecipeAllFilter{RecipeID: in.RecipeID})
		case FilterNonHealthy:
			filters = append(filters, menu.NonHealthyFilter{})
		case FilterUstensil:
			filters = append(filters, &menu.UstensilFilter{UstensilID: in.UstensilID})
		case FilterDataRange:
			f, err := menu.NewDataRangeFilter(di, in.Key, in.Min, in.Max)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case FilterDishTime:
			if dishTime == nil {
				var err error
				if dishTime, err = menu.NewDishTimeFilter(di); err != nil {
					return nil, err
				}
			}
			dishTime.AddDish(in.DishID, in.MaxPrep, in.MaxCook, in.MaxRest)
		default:
			return nil, errors.InvalidInput("filters.type", "未知的过滤器类型: "+in.Type)
		}
	}
	if dishTime != nil && !dishTime.Empty() {
		filters = append(filters, dishTime)
	}
	return filters, nil
}

// buildInitial 按请求中的食谱分配创建初始方案
func (b *Builder) buildInitial(p *problem.Problem, assignments []Assignment) (*problem.Solution, error) {
	s, err := problem.NewSolution(p)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if _, ok := p.Menu().Dish(a.DishID); !ok {
			return nil, errors.NotFound("菜品", strconv.FormatInt(a.DishID, 10)).WithField("field", "initial")
		}
		recipes := make([]*model.Recipe, 0, len(a.RecipeIDs))
		for _, id := range a.RecipeIDs {
			r, ok := b.catalog.Recipe(id)
			if !ok {
				return nil, errors.NotFound("食谱", strconv.FormatInt(id, 10)).WithField("dish_id", a.DishID)
			}
			recipes = append(recipes, r)
		}
		s.SetRecipeList(a.DishID, recipes, a.Ratio, false)
	}
	return s, nil
}

// checkFixed 不可变菜品必须在初始方案中给出食谱
func checkFixed(m *menu.Index, req *PlanRequest) error {
	if len(req.FixedDishes) == 0 {
		return nil
	}
	assigned := make(map[int64]bool, len(req.Initial))
	for _, a := range req.Initial {
		assigned[a.DishID] = true
	}
	for _, id := range req.FixedDishes {
		if !assigned[id] {
			return errors.InvalidInput("fixed_dishes", "不可变菜品 "+strconv.FormatInt(id, 10)+" 缺少初始食谱")
		}
	}
	return nil
}
