package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImportTeam/extensionBack/internal/engine"
	"github.com/ImportTeam/extensionBack/internal/normalize"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	res := &normalize.Resources{
		Mappings: []normalize.HardMappingEntry{
			{Key: "placeholder", Canonical: "placeholder"},
		},
		Categories: []normalize.CategoryRule{
			{Name: "phone", Tag: "스마트폰", Keywords: []string{"아이폰", "iphone", "갤럭시", "스마트폰"}},
			{Name: "laptop", Tag: "노트북", Keywords: []string{"맥북", "macbook", "노트북"}},
			{Name: "food", Tag: "식품", Keywords: []string{"라면"}},
		},
		Brands: []normalize.BrandRule{
			{Name: "apple", Aliases: []string{"애플"}},
			{Name: "samsung", Aliases: []string{"삼성", "삼성전자"}},
		},
	}
	require.NoError(t, res.Validate())
	return New(normalize.New(res, nil))
}

func finding(name string, price int64) *engine.Finding {
	return &engine.Finding{
		ProductID:   "1",
		ProductName: name,
		Offers:      []engine.Offer{{Rank: 1, Mall: "m", Price: price, Link: "https://x.example/1"}},
	}
}

func TestValidateAccepts(t *testing.T) {
	g := testGate(t)
	err := g.Validate(
		"애플 아이폰 15 프로 자급제",
		engine.CategoryPhone,
		finding("apple 애플 아이폰 15 프로 256gb 자급제", 1500000),
	)
	assert.NoError(t, err)
}

func TestValidateRejectsCategoryMismatch(t *testing.T) {
	g := testGate(t)
	err := g.Validate("아이폰 15", engine.CategoryPhone, finding("농심 라면 멀티팩", 3000))
	// The result name carries only the food keyword 라면, so it is
	// detected as food, which is not compatible with phone.
	assert.Error(t, err)
}

func TestValidateRejectsLowSimilarity(t *testing.T) {
	g := testGate(t)
	err := g.Validate("아이폰 15 프로", engine.CategoryPhone, finding("완전히 다른 상품 이름 입니다", 10000))
	assert.Error(t, err)
}

func TestValidateRejectsBrandMismatch(t *testing.T) {
	g := testGate(t)
	// Token overlap is high but the detected brands differ.
	assert.Error(t, g.Validate(
		"애플 아이폰 15 프로",
		engine.CategoryPhone,
		finding("삼성 아이폰 15 프로 스마트폰", 900000),
	))
}

func TestValidateRejectsNonPositivePrice(t *testing.T) {
	g := testGate(t)
	assert.Error(t, g.Validate("아이폰 15", engine.CategoryPhone, finding("아이폰 15", 0)))
	assert.Error(t, g.Validate("아이폰 15", engine.CategoryPhone, &engine.Finding{ProductName: "아이폰 15"}))
	assert.Error(t, g.Validate("아이폰 15", engine.CategoryPhone, nil))
}

func TestValidateUndetectedCategoryIsCompatible(t *testing.T) {
	g := testGate(t)
	err := g.Validate(
		"무명 브랜드 가습기 3000",
		engine.CategoryOther,
		finding("무명 브랜드 가습기 3000 화이트", 42000),
	)
	assert.NoError(t, err)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("아이폰 15 프로", "아이폰 15 프로"), 0.001)
	assert.InDelta(t, 0.0, Jaccard("아이폰", "갤럭시"), 0.001)
	assert.Equal(t, 0.0, Jaccard("", "아이폰"))

	// Half the tokens shared: 2 common of 4 union.
	sim := Jaccard("아이폰 15", "아이폰 15 프로 맥스")
	assert.InDelta(t, 0.5, sim, 0.001)
}
