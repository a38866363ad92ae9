package model

// SkipRules are the optional, OR-combined criteria a stage evaluates
// against a cached record to decide whether to skip reprocessing a ticket.
type SkipRules struct {
	SkipIfLocked bool `yaml:"skip_if_locked" mapstructure:"skip_if_locked"`

	// SkipIfQuality skips when the cached tier is in this set.
	SkipIfQuality []QualityTier `yaml:"skip_if_quality" mapstructure:"skip_if_quality"`

	// SkipIfConfidence skips when cached.confidence >= threshold. Nil disables.
	SkipIfConfidence *float64 `yaml:"skip_if_confidence" mapstructure:"skip_if_confidence"`

	// SkipIfMethod skips when the cached method is in this set.
	SkipIfMethod []string `yaml:"skip_if_method" mapstructure:"skip_if_method"`

	// SkipSameStage defaults to true: skip if the cached record was produced
	// by this same stage and isn't FAILED (prevents self-looping).
	SkipSameStage *bool `yaml:"skip_same_stage" mapstructure:"skip_same_stage"`
}

// SkipSameStageEnabled resolves the SkipSameStage default of true.
func (r SkipRules) SkipSameStageEnabled() bool {
	if r.SkipSameStage == nil {
		return true
	}
	return *r.SkipSameStage
}

// StageSettings is the per-stage configuration record: enabled flag,
// skip rules, and an open bag of stage-specific parameters.
type StageSettings struct {
	Enabled   bool                   `yaml:"enabled" mapstructure:"enabled"`
	SkipRules SkipRules              `yaml:"skip_rules" mapstructure:"skip_rules"`
	Params    map[string]any         `yaml:"params" mapstructure:"params"`
}
