package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"

	apperrors "github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// RecipeRepository 食谱目录仓储
type RecipeRepository struct {
	db DB
}

// NewRecipeRepository 创建食谱仓储
func NewRecipeRepository(db DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// LoadAll 读取全部食谱，数值属性的键注册到 di 中
func (r *RecipeRepository) LoadAll(ctx context.Context, di *model.DataIndexer) ([]*model.Recipe, error) {
	query := `
		SELECT id, name, dish_type_ids, food_tag_ids, recipe_tag_ids, ustensil_ids,
			cooking_method_ids, nb_ingredients, perceived_healthy, internal
		FROM recipes
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询食谱失败")
	}
	defer rows.Close()

	var recipes []*model.Recipe
	byID := make(map[int64]*model.Recipe)
	for rows.Next() {
		recipe, err := scanRecipe(rows, di)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
		byID[recipe.ID] = recipe
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "遍历食谱失败")
	}

	if err := r.loadData(ctx, di, byID); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *RecipeRepository) loadData(ctx context.Context, di *model.DataIndexer, byID map[int64]*model.Recipe) error {
	rows, err := r.db.QueryContext(ctx, `SELECT recipe_id, key, value FROM recipe_data ORDER BY recipe_id, key`)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询食谱数值失败")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recipeID int64
			key      string
			value    float64
		)
		if err := rows.Scan(&recipeID, &key, &value); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取食谱数值失败")
		}
		recipe, ok := byID[recipeID]
		if !ok {
			continue
		}
		recipe.SetDataID(di.Ensure(key), value)
	}
	return rows.Err()
}

func scanRecipe(s Scanner, di *model.DataIndexer) (*model.Recipe, error) {
	var (
		id                                    int64
		name                                  string
		dishTypes, foodTags, recipeTags, usts pq.Int64Array
		cookingMethods                        pq.Int64Array
		nbIngredients                         int
		healthy, internal                     bool
	)
	if err := s.Scan(&id, &name, &dishTypes, &foodTags, &recipeTags, &usts,
		&cookingMethods, &nbIngredients, &healthy, &internal); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取食谱失败")
	}

	recipe := model.NewRecipe(id, di)
	recipe.Name = name
	recipe.DishTypeIDs = sortedIDs(dishTypes)
	recipe.FoodTagIDs = sortedIDs(foodTags)
	recipe.RecipeTagIDs = sortedIDs(recipeTags)
	recipe.Ustensils = sortedIDs(usts)
	recipe.CookingMethodIDs = sortedIDs(cookingMethods)
	recipe.NbIngredients = nbIngredients
	recipe.PerceivedHealthy = healthy
	recipe.Internal = internal
	return recipe, nil
}

// Save 写入或更新一份食谱及其数值属性
func (r *RecipeRepository) Save(ctx context.Context, di *model.DataIndexer, recipe *model.Recipe) error {
	query := `
		INSERT INTO recipes (
			id, name, dish_type_ids, food_tag_ids, recipe_tag_ids, ustensil_ids,
			cooking_method_ids, nb_ingredients, perceived_healthy, internal
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, dish_type_ids = EXCLUDED.dish_type_ids,
			food_tag_ids = EXCLUDED.food_tag_ids, recipe_tag_ids = EXCLUDED.recipe_tag_ids,
			ustensil_ids = EXCLUDED.ustensil_ids, cooking_method_ids = EXCLUDED.cooking_method_ids,
			nb_ingredients = EXCLUDED.nb_ingredients, perceived_healthy = EXCLUDED.perceived_healthy,
			internal = EXCLUDED.internal
	`
	_, err := r.db.ExecContext(ctx, query,
		recipe.ID, recipe.Name, pq.Array(recipe.DishTypeIDs), pq.Array(recipe.FoodTagIDs),
		pq.Array(recipe.RecipeTagIDs), pq.Array(recipe.Ustensils), pq.Array(recipe.CookingMethodIDs),
		recipe.NbIngredients, recipe.PerceivedHealthy, recipe.Internal,
	)
	if err != nil {
		return fmt.Errorf("保存食谱 %d 失败: %w", recipe.ID, err)
	}

	for _, dataID := range recipe.DefinedDataIDs {
		key := di.Key(dataID)
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO recipe_data (recipe_id, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (recipe_id, key) DO UPDATE SET value = EXCLUDED.value
		`, recipe.ID, key, recipe.Value(dataID, 1))
		if err != nil {
			return fmt.Errorf("保存食谱 %d 的数值 %s 失败: %w", recipe.ID, key, err)
		}
	}
	return nil
}

// sortedIDs 升序去重，食谱的ID集合均要求有序
func sortedIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
