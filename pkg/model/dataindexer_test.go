package model

import (
	"reflect"
	"testing"

	"github.com/caidan/caidan/pkg/errors"
)

func TestDataIndexer(t *testing.T) {
	di, err := NewDataIndexer("sugar", KeyPrice)
	if err != nil {
		t.Fatalf("NewDataIndexer() error = %v", err)
	}

	id, err := di.Add("calories")
	if err != nil || id != 2 {
		t.Fatalf("Add(calories) = %d, %v", id, err)
	}
	if _, err := di.Add("sugar"); !errors.Is(err, errors.CodeDuplicateDataKey) {
		t.Errorf("重复键应返回 DUPLICATE_DATA_KEY, got %v", err)
	}
	if _, err := di.ID("fiber"); !errors.Is(err, errors.CodeUnknownDataKey) {
		t.Errorf("未知键应返回 UNKNOWN_DATA_KEY, got %v", err)
	}
	if got := di.Ensure(KeyPrice); got != 1 {
		t.Errorf("Ensure(price) = %d, want 1", got)
	}
	if got := di.Ensure("fiber"); got != 3 {
		t.Errorf("Ensure(fiber) = %d, want 3", got)
	}

	if di.Len() != 4 {
		t.Errorf("Len() = %d, want 4", di.Len())
	}
	want := []string{"calories", "fiber", "price", "sugar"}
	if got := di.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestNewDataIndexerDuplicate(t *testing.T) {
	if _, err := NewDataIndexer("a", "a"); err == nil {
		t.Error("重复键应返回错误")
	}
}
