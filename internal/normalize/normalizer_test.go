package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

func testResources() *Resources {
	return &Resources{
		Accessories: []string{"케이스", "커버", "필름", "거치대"},
		Mappings: []HardMappingEntry{
			{Key: "맥북 에어 15", Canonical: "Apple 맥북 에어 15 M4"},
			{Key: "맥북 에어", Canonical: "Apple 맥북 에어 M4"},
			{Key: "a b c", Canonical: "apple abc 프로 1 2 3"},
			{Key: "a b", Canonical: "apple ab"},
			{Key: "samsung 갤럭시 버즈3 프로", Canonical: "삼성전자 갤럭시 버즈2"},
			{Key: "신라면", Canonical: "농심 신라면 120g"},
		},
		Colors:     []string{"화이트", "블랙", "실버"},
		Conditions: []string{"자급제", "정품"},
		Transliterations: []Transliteration{
			{Hangul: "맥북", Latin: "macbook"},
			{Hangul: "에어", Latin: "air"},
			{Hangul: "아이폰", Latin: "iphone"},
		},
		Categories: []CategoryRule{
			{Name: "phone", Tag: "스마트폰", Keywords: []string{"아이폰", "iphone", "갤럭시"}},
			{Name: "laptop", Tag: "노트북", Keywords: []string{"맥북", "macbook", "노트북"}},
			{Name: "food", Tag: "식품", Keywords: []string{"라면"}},
		},
		BroadKeywords: []string{"아이폰", "맥북", "노트북"},
		Brands: []BrandRule{
			{Name: "apple", Aliases: []string{"애플", "apple"}},
			{Name: "samsung", Aliases: []string{"삼성", "삼성전자"}},
			{Name: "nongshim", Aliases: []string{"농심"}},
		},
	}
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	res := testResources()
	require.NoError(t, res.Validate())
	return New(res, nil)
}

func TestHardMapExactMatch(t *testing.T) {
	n := newTestNormalizer(t)

	// Whitespace variants all land on the same canonical.
	for _, raw := range []string{"맥북 에어 15", "  맥북   에어 15 ", "맥북 에어 15"} {
		nq := n.Normalize(raw)
		assert.True(t, nq.HardMapped, raw)
		assert.Equal(t, "Apple 맥북 에어 15 M4", nq.Primary, raw)
		assert.Equal(t, []string{"Apple 맥북 에어 15 M4"}, nq.Candidates, raw)
	}
}

func TestHardMapIsExactNotSubstring(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("맥북 에어 15 인치 자급제 고급형")
	assert.False(t, nq.HardMapped)
}

func TestHardMapLongestMatchFirst(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("a b c")
	require.True(t, nq.HardMapped)
	assert.Equal(t, "apple abc 프로 1 2 3", nq.Primary, "the longer key must win")

	nq = n.Normalize("a b")
	require.True(t, nq.HardMapped)
	assert.Equal(t, "apple ab", nq.Primary)
}

func TestHardMapAccessoryGuard(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("맥북 에어 15 케이스")
	assert.False(t, nq.HardMapped, "accessory token must skip Level 0")
}

func TestHardMapRejectsGradeTokenLoss(t *testing.T) {
	n := newTestNormalizer(t)
	// Key "samsung 갤럭시 버즈3 프로" maps to "...버즈2"; the raw carries
	// the grade tokens 3 and 프로, which the canonical loses.
	nq := n.Normalize("samsung 갤럭시 버즈3 프로")
	assert.False(t, nq.HardMapped)
	// The pipeline falls through to Level 1 with the cleaned primary.
	assert.Equal(t, "samsung 갤럭시 버즈3 프로", nq.Primary)
}

func TestHardMapDeterminism(t *testing.T) {
	n := newTestNormalizer(t)
	first := n.Normalize("신라면")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, n.Normalize("신라면"))
	}
	assert.Equal(t, "농심 신라면 120g", first.Primary)
}

func TestLevel1CandidatesPreserveGrades(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("아이폰 15 프로 화이트 자급제")
	require.False(t, nq.HardMapped)

	assert.Equal(t, nq.Primary, nq.Candidates[0], "primary must be candidate zero")
	for _, cand := range nq.Candidates[:nq.Level2Start] {
		assert.True(t, PreservesGrades(nq.Primary, cand), cand)
	}
	// The stripped candidate drops color and condition tokens.
	assert.Contains(t, nq.Candidates, "아이폰 15 프로")
}

func TestLevel1Transliterations(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("맥북 에어 16")
	require.False(t, nq.HardMapped)
	assert.Contains(t, nq.Candidates, "macbook air 16")
}

func TestLevel2Fallbacks(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("애플 2025 맥북 에어 16 고급형 에디션")
	require.False(t, nq.HardMapped)

	assert.Equal(t, "apple", nq.Brand)
	assert.Equal(t, engine.CategoryLaptop, nq.Category)
	assert.NotEmpty(t, nq.Model)

	require.Less(t, nq.Level2Start, len(nq.Candidates),
		"level 2 must contribute fallback candidates")
	fallbacks := nq.Candidates[nq.Level2Start:]
	assert.Contains(t, fallbacks, "apple")
	for i := range nq.Candidates {
		if i >= nq.Level2Start {
			assert.True(t, nq.NeedsGate(i))
		} else {
			assert.False(t, nq.NeedsGate(i))
		}
	}
}

func TestCandidateCap(t *testing.T) {
	n := newTestNormalizer(t)
	nq := n.Normalize("애플 맥북 에어 16 화이트 자급제 고급형 스페셜 에디션 리미티드")
	assert.LessOrEqual(t, len(nq.Candidates), 8)
	assert.LessOrEqual(t, nq.Level2Start, len(nq.Candidates))
}

func TestBroadQueryDetection(t *testing.T) {
	n := newTestNormalizer(t)

	nq := n.Normalize("아이폰")
	assert.True(t, nq.Broad)

	nq = n.Normalize("아이폰 15 프로 맥스 자급제")
	assert.False(t, nq.Broad, "long queries are never broad")

	nq = n.Normalize("게이밍 마우스")
	assert.False(t, nq.Broad, "short but non-broad keyword")
}

func TestDetectCategory(t *testing.T) {
	n := newTestNormalizer(t)
	tests := []struct {
		in   string
		want engine.Category
	}{
		{"아이폰 15", engine.CategoryPhone},
		{"맥북 에어", engine.CategoryLaptop},
		{"농심 신라면 멀티팩", engine.CategoryFood},
		{"이상한 물건", engine.CategoryOther},
	}
	for _, tt := range tests {
		got, _ := n.DetectCategory(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadResourcesFromRepo(t *testing.T) {
	res, err := LoadResources("../../resources")
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	n := New(res, nil)
	nq := n.Normalize("농심 신라면 120g")
	assert.True(t, nq.HardMapped)
	assert.Equal(t, "농심 신라면 120g", nq.Primary)
}
