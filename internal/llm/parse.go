package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

var (
	decisionRe = regexp.MustCompile(`(?i)DECISION:\s*(accept|reject)`)
	messageRe  = regexp.MustCompile(`(?i)MESSAGE:\s*(.+)`)

	fenceOpenRe  = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("(?m)```\\s*$")

	markerRe    = regexp.MustCompile(`(?i)NEGOTIATION_COMPLETE\s*:\s*yes|CONTRACT_JSON\s*:?\s*`)
	contractRe  = regexp.MustCompile(`(?s)\{[^{}]*"wholesale_price"[^{}]*\}`)
	boldRe      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe    = regexp.MustCompile(`\*([^*]+)\*`)
	bulletRe    = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
	spacesRe    = regexp.MustCompile(` +`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
	punctGapRe  = regexp.MustCompile(`\s+([.,!?;:])`)
	nonPlainRe  = regexp.MustCompile(`[^\w\s.,!?;:\-$()\n]`)
	defaultedRe = regexp.MustCompile(`(?i)^(yes|negotiation complete)$`)
)

// parseDecision extracts the accept/reject verdict and its explanation from
// the DECISION/MESSAGE line protocol.
func parseDecision(raw string) (negotiation.Decision, string, error) {
	dm := decisionRe.FindStringSubmatch(raw)
	mm := messageRe.FindStringSubmatch(raw)
	if dm == nil || mm == nil {
		return "", "", fmt.Errorf("response does not follow DECISION/MESSAGE format")
	}
	decision := negotiation.Decision(strings.ToLower(dm[1]))
	return decision, strings.TrimSpace(mm[1]), nil
}

// wireContract tolerates the loose field naming models produce; the older
// "length" key is honored alongside "contract_length".
type wireContract struct {
	WholesalePrice float64 `json:"wholesale_price"`
	BuybackPrice   float64 `json:"buyback_price"`
	ContractLength int     `json:"contract_length"`
	Length         int     `json:"length"`
	CapType        string  `json:"cap_type"`
	CapValue       float64 `json:"cap_value"`
	ContractType   string  `json:"contract_type"`
	RevenueShare   float64 `json:"revenue_share"`
}

// chatEnvelope is the JSON structure the chat model must reply with.
type chatEnvelope struct {
	Response            string        `json:"response"`
	Contract            *wireContract `json:"contract"`
	NegotiationComplete bool          `json:"negotiation_complete"`
}

// draftContract converts the wire form to a domain draft, or nil when the
// model attached no contract. The type is pinned to the negotiation's fixed
// type regardless of what the model claimed.
func (e chatEnvelope) draftContract(fixedType sim.ContractType) *sim.Contract {
	if e.Contract == nil {
		return nil
	}
	w := e.Contract
	length := w.ContractLength
	if length == 0 {
		length = w.Length
	}
	capType := sim.CapType(w.CapType)
	if capType == "" {
		capType = sim.CapFraction
	}
	return &sim.Contract{
		WholesalePrice: w.WholesalePrice,
		BuybackPrice:   w.BuybackPrice,
		CapType:        capType,
		CapValue:       w.CapValue,
		Length:         length,
		Type:           fixedType,
		RevenueShare:   w.RevenueShare,
	}
}

// parseChatEnvelope parses the model's JSON reply, tolerating markdown code
// fences and surrounding prose around the JSON object.
func parseChatEnvelope(raw string) (chatEnvelope, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
	cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var envelope chatEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		// Models sometimes wrap the JSON in commentary; retry on the
		// outermost object.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return chatEnvelope{}, fmt.Errorf("no JSON object in reply: %w", err)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &envelope); err != nil {
			return chatEnvelope{}, fmt.Errorf("malformed JSON reply: %w", err)
		}
	}
	if strings.TrimSpace(envelope.Response) == "" {
		return chatEnvelope{}, fmt.Errorf("empty response field in reply")
	}
	return envelope, nil
}

// cleanMessage strips technical markers, markdown, and emoji from a model
// message so students only ever see plain conversational text.
func cleanMessage(message string) string {
	message = markerRe.ReplaceAllString(message, "")
	message = contractRe.ReplaceAllString(message, "")
	message = boldRe.ReplaceAllString(message, "$1")
	message = italicRe.ReplaceAllString(message, "$1")
	message = bulletRe.ReplaceAllString(message, "")
	message = nonPlainRe.ReplaceAllString(message, "")
	message = spacesRe.ReplaceAllString(message, " ")
	message = newlinesRe.ReplaceAllString(message, "\n\n")
	message = punctGapRe.ReplaceAllString(message, "$1")

	cleaned := strings.TrimSpace(message)
	if cleaned == "" || defaultedRe.MatchString(cleaned) {
		return "Great! Let's proceed with these terms."
	}
	return cleaned
}
