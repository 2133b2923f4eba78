package configbackup

import (
	"regexp"
	"strings"
)

// KeywordWeight pairs a security-sensitive keyword with its contribution
// to the risk score when a changed line contains it.
type KeywordWeight struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// RiskConfig is the table-driven input to ComputeRiskScore. It is loaded
// from the hub config's drift_patterns section (see pkg/config) so the
// heuristic can be tuned without a code change; DefaultRiskConfig is used
// when that section is absent.
type RiskConfig struct {
	SecurityKeywords []KeywordWeight `json:"security_keywords"`
	ServicePatterns  []string        `json:"service_patterns"`
	NetworkPatterns  []string        `json:"network_patterns"`
	SizeWeight       float64         `json:"size_weight"`
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		SecurityKeywords: []KeywordWeight{
			{Keyword: "password", Weight: 0.35},
			{Keyword: "secret", Weight: 0.35},
			{Keyword: "token", Weight: 0.3},
			{Keyword: "allow", Weight: 0.15},
			{Keyword: "deny", Weight: 0.15},
			{Keyword: "permit", Weight: 0.15},
			{Keyword: "root", Weight: 0.2},
			{Keyword: "admin", Weight: 0.2},
		},
		ServicePatterns: []string{
			`(?i)\b(enable|disable)[sd]?\b.*\bservice\b`,
			`(?i)\bsystemctl\s+(start|stop|enable|disable)\b`,
		},
		NetworkPatterns: []string{
			`(?i)\bport\s*[:=]?\s*\d+\b`,
			`(?i)\b(0\.0\.0\.0|::/0)\b`,
			`(?i)\broute\b`,
			`(?i)\bfirewall\b`,
		},
		SizeWeight: 0.1,
	}
}

type compiledRiskConfig struct {
	keywords []KeywordWeight
	service  []*regexp.Regexp
	network  []*regexp.Regexp
	size     float64
}

func compileRiskConfig(cfg RiskConfig) compiledRiskConfig {
	compiled := compiledRiskConfig{keywords: cfg.SecurityKeywords, size: cfg.SizeWeight}
	for _, pattern := range cfg.ServicePatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			compiled.service = append(compiled.service, re)
		}
	}
	for _, pattern := range cfg.NetworkPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			compiled.network = append(compiled.network, re)
		}
	}
	return compiled
}

// ComputeRiskScore scores the changed lines between two snapshot bodies,
// returning a score in [0,1] and a short free-text change-type label.
func ComputeRiskScore(changedLines []string, before, after string, cfg RiskConfig) (float64, string) {
	compiled := compileRiskConfig(cfg)
	var score float64
	changeTypes := make([]string, 0, 3)

	keywordHit := false
	for _, line := range changedLines {
		lower := strings.ToLower(line)
		for _, kw := range compiled.keywords {
			if strings.Contains(lower, kw.Keyword) {
				score += kw.Weight
				keywordHit = true
			}
		}
	}
	if keywordHit {
		changeTypes = append(changeTypes, "security")
	}

	serviceHit := false
	networkHit := false
	for _, line := range changedLines {
		for _, re := range compiled.service {
			if re.MatchString(line) {
				serviceHit = true
			}
		}
		for _, re := range compiled.network {
			if re.MatchString(line) {
				networkHit = true
			}
		}
	}
	if serviceHit {
		score += 0.25
		changeTypes = append(changeTypes, "service")
	}
	if networkHit {
		score += 0.25
		changeTypes = append(changeTypes, "network")
	}

	beforeLen, afterLen := len(before), len(after)
	maxLen := beforeLen
	if afterLen > maxLen {
		maxLen = afterLen
	}
	if maxLen > 0 {
		delta := beforeLen - afterLen
		if delta < 0 {
			delta = -delta
		}
		relative := float64(delta) / float64(maxLen)
		score += relative * compiled.size
	}

	if score > 1 {
		score = 1
	}
	if len(changeTypes) == 0 {
		changeTypes = append(changeTypes, "content")
	}
	return score, strings.Join(changeTypes, "+")
}
