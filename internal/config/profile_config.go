package config

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"strings"
)

type AcademicLevel string

const (
	PhDStudent    AcademicLevel = "phd_student"
	Dissertation  AcademicLevel = "dissertation"
	Postdoc       AcademicLevel = "postdoc"
	PostMasters   AcademicLevel = "post_masters"
	PostBachelors AcademicLevel = "post_bachelors"
)

type Citizenship string

const (
	USCitizen           Citizenship = "us_citizen"
	USPermanentResident Citizenship = "us_lpr"
	AnyCitizenship      Citizenship = "none"
)

var DefaultKeywords = []string{
	"public health", "health disparities", "food insecurity",
	"community health", "nutrition", "epidemiology",
}

var DefaultDisciplines = []string{
	"public health", "epidemiology", "social sciences", "life sciences",
}

type ProfileConfig struct {
	Keywords       []string      `mapstructure:"keywords"`
	Disciplines    []string      `mapstructure:"disciplines"`
	AcademicLevel  AcademicLevel `mapstructure:"academic_level" validate:"oneof=phd_student dissertation postdoc post_masters post_bachelors"`
	Citizenship    Citizenship   `mapstructure:"citizenship" validate:"oneof=us_citizen us_lpr none"`
	ScoreThreshold int           `mapstructure:"score_threshold" validate:"gte=0"`
}

func (config *ProfileConfig) normalize() {
	config.Keywords = cleanTerms(config.Keywords)
	config.Disciplines = cleanTerms(config.Disciplines)
	config.AcademicLevel = AcademicLevel(strings.ToLower(strings.TrimSpace(string(config.AcademicLevel))))
	config.Citizenship = Citizenship(strings.ToLower(strings.TrimSpace(string(config.Citizenship))))
}

// blank terms would match every text, so they are dropped
func cleanTerms(terms []string) []string {
	trimmed := lo.Map(terms, func(term string, _ int) string {
		return strings.TrimSpace(term)
	})
	return lo.Filter(trimmed, func(term string, _ int) bool {
		return term != ""
	})
}

func (config ProfileConfig) validate() error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}
