package verdict

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"guardrail/internal/logging"
)

// UnparseableExplanation is the fixed marker used when no explanation can be
// extracted from a response.
const UnparseableExplanation = "The evaluator response could not be parsed."

// minimalVerdictPattern matches the bare {"result": n, "explanation": "..."}
// shape even when the surrounding JSON is too broken to decode, tolerating
// escaped quotes inside the explanation.
var minimalVerdictPattern = regexp.MustCompile(
	`\{\s*"result"\s*:\s*(-?\d+)\s*,\s*"explanation"\s*:\s*"((?:[^"\\]|\\.)*)"\s*\}`)

// Parser converts raw evaluator responses into verdicts.
type Parser struct {
	affirmative string
	negative    string
	logger      logging.Logger
}

// NewParser builds a parser with the given fallback token vocabulary. The
// affirmative token is checked first when both appear in a response.
func NewParser(affirmative, negative string, logger logging.Logger) *Parser {
	return &Parser{
		affirmative: affirmative,
		negative:    negative,
		logger:      logging.OrNop(logger),
	}
}

// Parse never fails: every input maps to a verdict, falling through four
// layers before settling on Unknown with a fixed explanation.
func (p *Parser) Parse(raw string) Verdict {
	candidate, ok := extractJSONCandidate(raw)
	if ok {
		if v, ok := p.decodeStrict(candidate); ok {
			return p.finish(v)
		}
		if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
			if v, ok := p.decodeStrict(repaired); ok {
				p.logger.Debug("verdict recovered via json repair")
				return p.finish(v)
			}
		}
		if v, ok := p.decodeRegex(candidate); ok {
			p.logger.Debug("verdict recovered via pattern match")
			return p.finish(v)
		}
	}

	if v, ok := p.decodeTokens(raw); ok {
		p.logger.Debug("verdict recovered via token search")
		return p.finish(v)
	}

	p.logger.Warn("unparseable evaluator response (%d bytes)", len(raw))
	return Verdict{Compliance: Unknown, Explanation: UnparseableExplanation}
}

// extractJSONCandidate cuts the substring from the first '{' to the last '}'
// and flattens newlines, which rescues JSON split across lines by the model.
func extractJSONCandidate(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	candidate := raw[start : end+1]
	candidate = strings.ReplaceAll(candidate, "\r", " ")
	candidate = strings.ReplaceAll(candidate, "\n", " ")
	return candidate, true
}

type rawVerdict struct {
	Result       any    `json:"result"`
	Explanation  string `json:"explanation"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
	Category     string `json:"category"`
	IssueNumber  any    `json:"issue_number"`
	Severity     string `json:"severity"`
}

func (p *Parser) decodeStrict(candidate string) (Verdict, bool) {
	var decoded rawVerdict
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return Verdict{}, false
	}
	result, ok := coerceInt(decoded.Result)
	if !ok {
		return Verdict{}, false
	}
	return Verdict{
		Compliance:   complianceFromResult(result),
		Explanation:  decoded.Explanation,
		Status:       decoded.Status,
		StatusDetail: decoded.StatusDetail,
		Category:     decoded.Category,
		IssueNumber:  stringifyIssueNumber(decoded.IssueNumber),
		Severity:     decoded.Severity,
	}, true
}

func (p *Parser) decodeRegex(candidate string) (Verdict, bool) {
	matches := minimalVerdictPattern.FindStringSubmatch(candidate)
	if matches == nil {
		return Verdict{}, false
	}
	result, err := strconv.Atoi(matches[1])
	if err != nil {
		return Verdict{}, false
	}
	explanation := matches[2]
	if unquoted, err := strconv.Unquote(`"` + explanation + `"`); err == nil {
		explanation = unquoted
	}
	return Verdict{
		Compliance:  complianceFromResult(result),
		Explanation: explanation,
	}, true
}

// decodeTokens scans for the answer vocabulary. The affirmative token is
// checked first so a response like "the answer is not no" still reads as yes
// when both tokens occur.
func (p *Parser) decodeTokens(raw string) (Verdict, bool) {
	if p.affirmative != "" && strings.Contains(raw, p.affirmative) {
		return Verdict{Compliance: Compliant, Explanation: strings.TrimSpace(raw)}, true
	}
	if p.negative != "" && strings.Contains(raw, p.negative) {
		return Verdict{Compliance: NonCompliant, Explanation: strings.TrimSpace(raw)}, true
	}
	return Verdict{}, false
}

func (p *Parser) finish(v Verdict) Verdict {
	if strings.TrimSpace(v.Explanation) == "" {
		v.Explanation = UnparseableExplanation
	}
	return v
}

func complianceFromResult(result int) Compliance {
	switch result {
	case 1:
		return Compliant
	case 0:
		return NonCompliant
	default:
		return Unknown
	}
}

func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func stringifyIssueNumber(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
