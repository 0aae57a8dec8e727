package matching

import (
	"fmt"
	"os"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"gopkg.in/yaml.v3"
)

// Profile holds the tunable constants of scoring and candidate generation.
type Profile struct {
	Threshold             float64 `yaml:"threshold"`
	CertainScore          float64 `yaml:"certain_score"`
	NonPersonFactor       float64 `yaml:"non_person_factor"`
	CountryMismatchFactor float64 `yaml:"country_mismatch_factor"`
	UntaskedFactor        float64 `yaml:"untasked_factor"`
	MinTokenLength        int     `yaml:"min_token_length"`
	MinFingerprintLength  int     `yaml:"min_fingerprint_length"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		Threshold:             0.5,
		CertainScore:          1.5,
		NonPersonFactor:       0.85,
		CountryMismatchFactor: 0.9,
		UntaskedFactor:        0.95,
		MinTokenLength:        fingerprint.DefaultMinTokenLength,
		MinFingerprintLength:  fingerprint.DefaultMinLength,
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep their defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read scoring profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse scoring profile %s: %w", path, err)
	}
	return profile, profile.Validate()
}

// Validate rejects profiles that would break the score bounds.
func (p Profile) Validate() error {
	switch {
	case p.Threshold < 0 || p.Threshold > 2:
		return fmt.Errorf("threshold must be within [0, 2], got %v", p.Threshold)
	case p.CertainScore <= 1 || p.CertainScore > 2:
		return fmt.Errorf("certain_score must be within (1, 2], got %v", p.CertainScore)
	case !isFactor(p.NonPersonFactor), !isFactor(p.CountryMismatchFactor), !isFactor(p.UntaskedFactor):
		return fmt.Errorf("score factors must be within [0, 1]")
	case p.MinTokenLength < 1 || p.MinFingerprintLength < 1:
		return fmt.Errorf("fingerprint lengths must be positive")
	}
	return nil
}

// Fingerprinter returns the fingerprinter configured by the profile.
func (p Profile) Fingerprinter() fingerprint.Fingerprinter {
	return fingerprint.Fingerprinter{MinTokenLength: p.MinTokenLength, MinLength: p.MinFingerprintLength}
}

func isFactor(f float64) bool {
	return f >= 0 && f <= 1
}
