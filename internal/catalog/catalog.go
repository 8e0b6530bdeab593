// Package catalog 管理规划所用的食谱目录
package catalog

import (
	"context"
	"os"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// Catalog 只读的食谱目录，所有请求共享同一个数据索引器
type Catalog struct {
	indexer *model.DataIndexer
	recipes []*model.Recipe
	byID    map[int64]*model.Recipe
}

// New 创建空目录
func New(di *model.DataIndexer) *Catalog {
	return &Catalog{indexer: di, byID: make(map[int64]*model.Recipe)}
}

// Add 加入食谱，ID 重复时返回错误
func (c *Catalog) Add(r *model.Recipe) error {
	if _, ok := c.byID[r.ID]; ok {
		return errors.New(errors.CodeAlreadyExists, "食谱ID重复").WithField("recipe_id", r.ID)
	}
	c.byID[r.ID] = r
	c.recipes = append(c.recipes, r)
	return nil
}

// Indexer 数据索引器
func (c *Catalog) Indexer() *model.DataIndexer { return c.indexer }

// Recipes 全部食谱，按加入顺序
func (c *Catalog) Recipes() []*model.Recipe { return c.recipes }

// Recipe 按ID查找
func (c *Catalog) Recipe(id int64) (*model.Recipe, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Len 食谱数量
func (c *Catalog) Len() int { return len(c.recipes) }

// LoadJSON 解析目录 JSON：
//
//	{"recipes": [{"id": 1, "name": "...", "dish_types": [1], "data": {"price": 2.5}, ...}]}
func LoadJSON(data []byte) (*Catalog, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidInput("catalog", "不是合法的 JSON")
	}
	list := gjson.GetBytes(data, "recipes")
	if !list.IsArray() {
		return nil, errors.InvalidInput("recipes", "缺少食谱数组")
	}

	di := newIndexer()
	c := New(di)
	var loadErr error
	list.ForEach(func(_, v gjson.Result) bool {
		r, err := parseRecipe(di, v)
		if err == nil {
			err = c.Add(r)
		}
		if err != nil {
			loadErr = err
			return false
		}
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return c, nil
}

// LoadFile 从文件读取目录
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfig, "读取食谱目录失败").WithField("path", path)
	}
	return LoadJSON(data)
}

func parseRecipe(di *model.DataIndexer, v gjson.Result) (*model.Recipe, error) {
	id := v.Get("id")
	if !id.Exists() || id.Int() <= 0 {
		return nil, errors.InvalidInput("recipes.id", "食谱ID必须为正整数")
	}
	r := model.NewRecipe(id.Int(), di)
	r.Name = v.Get("name").String()
	r.DishTypeIDs = readIDs(v.Get("dish_types"))
	if len(r.DishTypeIDs) == 0 {
		return nil, errors.InvalidInput("recipes.dish_types", "食谱至少需要一个菜品类型").WithField("recipe_id", r.ID)
	}
	r.FoodTagIDs = readIDs(v.Get("food_tags"))
	r.MainFoodTagIDs = readIDs(v.Get("main_food_tags"))
	r.RecipeTagIDs = readIDs(v.Get("recipe_tags"))
	r.Ustensils = readIDs(v.Get("ustensils"))
	r.CookingMethodIDs = readIDs(v.Get("cooking_methods"))
	r.NbIngredients = int(v.Get("nb_ingredients").Int())
	r.PerceivedHealthy = !v.Get("perceived_healthy").Exists() || v.Get("perceived_healthy").Bool()
	r.Internal = v.Get("internal").Bool()

	if foods := v.Get("foods"); foods.IsObject() {
		r.Foods = make(map[int64]float64)
		var err error
		foods.ForEach(func(k, g gjson.Result) bool {
			foodID, perr := strconv.ParseInt(k.String(), 10, 64)
			if perr != nil {
				err = errors.InvalidInput("recipes.foods", "食材ID必须为整数").WithField("recipe_id", r.ID)
				return false
			}
			r.Foods[foodID] = g.Float()
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	var err error
	v.Get("data").ForEach(func(k, value gjson.Result) bool {
		if value.Type != gjson.Number {
			err = errors.InvalidInput("recipes.data."+k.String(), "数值属性必须为数字").WithField("recipe_id", r.ID)
			return false
		}
		r.SetDataID(di.Ensure(k.String()), value.Float())
		return true
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// readIDs 读取升序去重的ID数组
func readIDs(v gjson.Result) []int64 {
	if !v.Exists() || !v.IsArray() {
		return nil
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, item := range v.Array() {
		id := item.Int()
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// newIndexer 预先注册常用键，时间与预算约束总能找到对应的数据
func newIndexer() *model.DataIndexer {
	di, _ := model.NewDataIndexer(model.KeyPrepMinutes, model.KeyCookMinutes, model.KeyRestMinutes, model.KeyPrice)
	return di
}

// RecipeLoader 从存储读取全部食谱
type RecipeLoader interface {
	LoadAll(ctx context.Context, di *model.DataIndexer) ([]*model.Recipe, error)
}

// FromRepository 从数据库加载目录
func FromRepository(ctx context.Context, loader RecipeLoader) (*Catalog, error) {
	di := newIndexer()
	recipes, err := loader.LoadAll(ctx, di)
	if err != nil {
		return nil, err
	}
	c := New(di)
	for _, r := range recipes {
		if err := c.Add(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}
