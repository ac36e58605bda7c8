package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rewardcenter/native/rewardcenter"
)

// ErrParamsNotFound is returned by LoadRewardRules, together with the default
// rules, when the params file does not exist.
var ErrParamsNotFound = errors.New("config: reward center params file not found")

// RewardCenterParams is the file format read by create-reward-center. JSON
// files are accepted as they are valid YAML.
type RewardCenterParams struct {
	rewardcenter.RewardRules `yaml:",inline"`
}

// LoadRewardRules reads reward rules from path. A missing file yields the
// default rules (Divide, 5, 1000) and ErrParamsNotFound so callers can warn.
// Rules are validated before being returned.
func LoadRewardRules(path string) (rewardcenter.RewardRules, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return rewardcenter.DefaultRewardRules(), ErrParamsNotFound
	}
	if err != nil {
		return rewardcenter.RewardRules{}, err
	}
	var params RewardCenterParams
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return rewardcenter.RewardRules{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := params.RewardRules.Validate(); err != nil {
		return rewardcenter.RewardRules{}, err
	}
	return params.RewardRules, nil
}
