package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// 検証モード
const (
	ValidationIdentifier = "identifier" // 識別子列のみ必須
	ValidationReserved   = "reserved"   // 予約列すべて必須
)

// DefaultProfileName は COLUMN_PROFILE 未設定時に使うプロファイル
const DefaultProfileName = "v1"

// ColumnProfile は予約列・欠損値補完・検証モードの組み合わせを表す。
// 予約列はモデル特徴量から除外されるが、出力には残る。
type ColumnProfile struct {
	Name              string            `yaml:"name" json:"name"`
	Description       string            `yaml:"description,omitempty" json:"description,omitempty"`
	IdentifierColumn  string            `yaml:"identifier_column" json:"identifier_column"`
	ReservedColumns   []string          `yaml:"reserved_columns" json:"reserved_columns"`
	ValidationMode    string            `yaml:"validation_mode" json:"validation_mode"`
	FillDefaults      map[string]string `yaml:"fill_defaults,omitempty" json:"fill_defaults,omitempty"`
	PredictionColumn  string            `yaml:"prediction_column,omitempty" json:"prediction_column"`
	ProbabilityColumn string            `yaml:"probability_column,omitempty" json:"probability_column"`
}

// ColumnProfilesFile は column_profiles.yaml の構造を定義
type ColumnProfilesFile struct {
	Default  string          `yaml:"default"`
	Profiles []ColumnProfile `yaml:"profiles"`
}

// ColumnProfiles は名前で引けるプロファイル集合
type ColumnProfiles struct {
	Default  string
	profiles map[string]*ColumnProfile
}

var baseReserved = []string{"Customer ID", "City", "Zip Code", "Latitude", "Longitude"}

// DefaultColumnProfiles は組み込みのプロファイル（v1: 識別子のみ検証, v2: 予約列すべて検証）を返す
func DefaultColumnProfiles() *ColumnProfiles {
	v1 := ColumnProfile{
		Name:             "v1",
		Description:      "identifier-only validation; churn outcome columns reserved",
		IdentifierColumn: "Customer ID",
		ReservedColumns:  append(append([]string{}, baseReserved...), "Churn Reason", "Churn Category"),
		ValidationMode:   ValidationIdentifier,
		FillDefaults:     map[string]string{"Customer Satisfaction": "3"},
	}
	v2 := ColumnProfile{
		Name:             "v2",
		Description:      "full reserved-set validation; demographic and service columns reserved",
		IdentifierColumn: "Customer ID",
		ReservedColumns:  append(append([]string{}, baseReserved...), "Phone Service", "Internet Type", "Gender", "Offer"),
		ValidationMode:   ValidationReserved,
		FillDefaults:     map[string]string{"Customer Satisfaction": "3"},
	}
	set, _ := NewColumnProfiles(DefaultProfileName, []ColumnProfile{v1, v2})
	return set
}

// NewColumnProfiles は検証済みのプロファイル集合を作る
func NewColumnProfiles(defaultName string, profiles []ColumnProfile) (*ColumnProfiles, error) {
	set := &ColumnProfiles{Default: defaultName, profiles: make(map[string]*ColumnProfile)}
	for i := range profiles {
		p := profiles[i]
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.profiles[p.Name]; dup {
			return nil, fmt.Errorf("プロファイル名が重複しています: %s", p.Name)
		}
		set.profiles[p.Name] = &p
	}
	if len(set.profiles) == 0 {
		return nil, fmt.Errorf("プロファイルが1つも定義されていません")
	}
	if set.Default == "" {
		set.Default = set.Names()[0]
	}
	if _, ok := set.profiles[set.Default]; !ok {
		return nil, fmt.Errorf("デフォルトプロファイル %q が存在しません", set.Default)
	}
	return set, nil
}

// LoadColumnProfiles はYAMLファイルからプロファイルを読み込む。path が空なら組み込み値を返す。
func LoadColumnProfiles(path string) (*ColumnProfiles, error) {
	if path == "" {
		return DefaultColumnProfiles(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("列プロファイル設定ファイルの読み込みに失敗: %w", err)
	}
	var file ColumnProfilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	return NewColumnProfiles(file.Default, file.Profiles)
}

// Get は名前でプロファイルを取得する。空文字ならデフォルト。
func (s *ColumnProfiles) Get(name string) (*ColumnProfile, error) {
	if name == "" {
		name = s.Default
	}
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown column profile %q (available: %v)", name, s.Names())
	}
	return p, nil
}

// Names returns profile names in sorted order.
func (s *ColumnProfiles) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every profile sorted by name.
func (s *ColumnProfiles) All() []ColumnProfile {
	out := make([]ColumnProfile, 0, len(s.profiles))
	for _, n := range s.Names() {
		out = append(out, *s.profiles[n])
	}
	return out
}

func (p *ColumnProfile) applyDefaults() {
	if p.ValidationMode == "" {
		p.ValidationMode = ValidationIdentifier
	}
	if p.PredictionColumn == "" {
		p.PredictionColumn = "Prediction"
	}
	if p.ProbabilityColumn == "" {
		p.ProbabilityColumn = "Churn Probability"
	}
	if p.IdentifierColumn == "" && len(p.ReservedColumns) > 0 {
		p.IdentifierColumn = p.ReservedColumns[0]
	}
}

// Validate checks the profile is internally consistent.
func (p *ColumnProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("プロファイル名は必須です")
	}
	if p.IdentifierColumn == "" {
		return fmt.Errorf("profile %s: identifier_column is required", p.Name)
	}
	if p.ValidationMode != ValidationIdentifier && p.ValidationMode != ValidationReserved {
		return fmt.Errorf("profile %s: invalid validation_mode %q", p.Name, p.ValidationMode)
	}
	if !p.IsReserved(p.IdentifierColumn) {
		return fmt.Errorf("profile %s: identifier column %q must be listed in reserved_columns", p.Name, p.IdentifierColumn)
	}
	seen := make(map[string]bool, len(p.ReservedColumns))
	for _, c := range p.ReservedColumns {
		if seen[c] {
			return fmt.Errorf("profile %s: reserved column %q listed twice", p.Name, c)
		}
		seen[c] = true
	}
	return nil
}

// IsReserved reports whether col is one of the profile's reserved columns.
func (p *ColumnProfile) IsReserved(col string) bool {
	for _, c := range p.ReservedColumns {
		if c == col {
			return true
		}
	}
	return false
}

// RequiredColumns は検証モードに応じて必須となる列を返す
func (p *ColumnProfile) RequiredColumns() []string {
	if p.ValidationMode == ValidationReserved {
		return append([]string{}, p.ReservedColumns...)
	}
	return []string{p.IdentifierColumn}
}
