package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase and collapse", in: "  MacBook   Air  15 ", want: "macbook air 15"},
		{name: "hangul latin boundary", in: "갤럭시S24울트라", want: "갤럭시 s24울트라"},
		{name: "latin hangul boundary", in: "iPhone케이스", want: "iphone 케이스"},
		{name: "strip punctuation", in: "[카드할인] 삼성 오디세이 G5!", want: "카드할인 삼성 오디세이 g5"},
		{name: "keep hyphen underscore", in: "BB1422SS-N_v2", want: "bb1422ss-n_v2"},
		{name: "empty", in: "", want: ""},
		{name: "symbols only", in: "×!@#", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{"갤럭시S24울트라", "MacBook  Air", "아이폰 15 프로 (자급제)"}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), in)
	}
}

func TestGradeTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "갤럭시 버즈3 프로", want: []string{"3", "pro"}},
		{in: "iPhone 15 Pro Max", want: []string{"15", "pro", "max"}},
		{in: "갤럭시 S24 울트라", want: []string{"24", "ultra"}},
		{in: "맥북 에어", want: nil},
		{in: "갤럭시 Z 플립 5 FE", want: []string{"5", "fe"}},
	}
	for _, tt := range tests {
		assert.ElementsMatch(t, tt.want, GradeTokens(tt.in), tt.in)
	}
}

func TestPreservesGrades(t *testing.T) {
	tests := []struct {
		source    string
		candidate string
		want      bool
	}{
		{"갤럭시 버즈3 프로", "삼성전자 갤럭시 버즈3 프로", true},
		{"갤럭시 버즈3 프로", "삼성전자 갤럭시 버즈", false},
		{"갤럭시 버즈3 프로", "galaxy buds3 pro", true},
		{"아이폰 15", "아이폰", false},
		{"맥북 에어", "macbook air", true},
		// Superset is allowed; the rule is no loss.
		{"맥북 에어", "맥북 에어 15 M4", true},
		// Korean and Latin grade spellings are the same token.
		{"버즈 프로", "buds pro", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PreservesGrades(tt.source, tt.candidate),
			"%s -> %s", tt.source, tt.candidate)
	}
}
