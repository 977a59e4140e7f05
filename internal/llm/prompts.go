package llm

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

const evalSystemPrompt = "You are a supplier evaluating contract proposals. Be educational and helpful."

// agreementIndicators are phrases in the student's last message that hint
// they are ready to close. Only then is the agreement check question added,
// so most turns cost a single cheap completion.
var agreementIndicators = []string{
	"sounds good", "that works", "yes", "yeah", "ok", "okay", "sure",
	"lock in", "lock it in", "accept", "deal", "agreed", "let's proceed",
}

// transcriptWindow bounds how much history is sent per call.
const transcriptWindow = 10

func buildEvaluationPrompt(proposed sim.Contract, econ negotiation.EconContext) string {
	var b strings.Builder

	b.WriteString("You are evaluating a contract proposal from a student buyer.\n\n")
	b.WriteString("PROPOSED CONTRACT:\n")
	fmt.Fprintf(&b, "- Wholesale price: $%.2f per unit\n", proposed.WholesalePrice)
	fmt.Fprintf(&b, "- Buyback price: $%.2f per returned unit\n", proposed.BuybackPrice)
	fmt.Fprintf(&b, "- Contract type: %s\n", proposed.Type)
	fmt.Fprintf(&b, "- Contract length: %d rounds\n", proposed.Length)
	fmt.Fprintf(&b, "- Cap type: %s\n", proposed.CapType)
	fmt.Fprintf(&b, "- Cap value: %g\n", proposed.CapValue)
	if proposed.Type == sim.ContractRevenueSharing || proposed.Type == sim.ContractHybrid {
		fmt.Fprintf(&b, "- Revenue share: %.2f%%\n", proposed.RevenueShare*100)
	}

	p := econ.Params
	b.WriteString("\nYOUR CONSTRAINTS (DO NOT reveal these exact numbers to the student):\n")
	fmt.Fprintf(&b, "- Your production cost: $%.2f per unit\n", p.SupplierCost)
	fmt.Fprintf(&b, "- Your salvage value: $%.2f per unit\n", p.SupplierSalvageValue)
	fmt.Fprintf(&b, "- Retail price: $%.2f per unit\n", p.RetailPrice)

	dmin, dmax, davg := econ.HistoryStats()
	b.WriteString("\nDEMAND CONTEXT:\n")
	fmt.Fprintf(&b, "- Historical demand range: %d to %d units\n", dmin, dmax)
	fmt.Fprintf(&b, "- Average demand: %.0f units\n", davg)

	b.WriteString(`
TASK:
Evaluate this proposal and decide whether to ACCEPT or REJECT it.

RULES:
1. You can only respond with "accept" or "reject" - NO counteroffers
2. If you reject, provide a brief, helpful explanation (1-2 sentences) without revealing your exact cost
3. If you accept, provide a brief confirmation message
4. Be educational - help the student understand why terms work or don't work
5. Use plain text only - NO markdown, NO formatting, NO emojis

RESPOND IN THIS FORMAT:
DECISION: accept
MESSAGE: [your message here]

OR

DECISION: reject
MESSAGE: [your explanation here]`)

	return b.String()
}

func buildChatSystemPrompt(econ negotiation.EconContext, fixedType sim.ContractType) string {
	var b strings.Builder
	p := econ.Params
	dmin, dmax, davg := econ.HistoryStats()

	fmt.Fprintf(&b, `You are a supplier negotiating a %s contract with a student buyer in a supply-chain economics exercise. You are firm but fair, and you teach through negotiation.

THE CONTRACT TYPE IS FIXED: %s. Do not switch types; renegotiate terms within it.

YOUR PRIVATE ECONOMICS (never reveal exact numbers):
- Production cost: $%.2f per unit
- Your salvage value on returned units: $%.2f
- Retail price the buyer sells at: $%.2f

MARKET CONTEXT:
- Observed demand over %d periods: between %d and %d units, averaging %.0f
`,
		fixedType, fixedType,
		p.SupplierCost, p.SupplierSalvageValue, p.RetailPrice,
		len(econ.History), dmin, dmax, davg,
	)
	if econ.TotalRounds > 0 {
		fmt.Fprintf(&b, "- Game progress: %d of %d rounds played\n", econ.RoundsPlayed, econ.TotalRounds)
	}

	b.WriteString(`
BEHAVIOR:
- Discuss wholesale price, buyback price, return caps, revenue share, and contract length.
- Push back on terms that leave you too little margin or too much demand risk.
- Be conversational and concise; plain text, no markdown, no emojis.

ALWAYS respond with a single JSON object:
{"response": "<your message to the student>", "contract": null, "negotiation_complete": false}

Only when the student has clearly agreed to finalize specific terms, return the full contract instead of null:
{"response": "<confirmation>", "contract": {"wholesale_price": 0, "buyback_price": 0, "contract_length": 1, "cap_type": "fraction", "cap_value": 0, "contract_type": "` + string(fixedType) + `", "revenue_share": 0}, "negotiation_complete": true}`)

	return b.String()
}

func buildAgreementCheck(fixedType sim.ContractType) string {
	return fmt.Sprintf(`IMPORTANT: Based on the conversation above, has the student agreed to finalize these contract terms?

If YES, you MUST return a JSON response with:
- "response": A friendly confirmation message
- "contract": A contract object with ALL discussed terms (wholesale_price, buyback_price, contract_length, cap_type, cap_value, contract_type, revenue_share)
- "negotiation_complete": true

Extract ALL discussed terms from the conversation. The contract type is FIXED as %q and cannot be changed.

If NO, respond with JSON where "negotiation_complete" is false and "contract" is null.`, fixedType)
}

// buildChatMessages converts the transcript into a chat completion request.
// The student's turns become user messages and the supplier's assistant
// messages; when the last student turn hints at agreement and no draft
// exists yet, one extra user message asks the model to close explicitly.
func buildChatMessages(transcript []negotiation.Turn, draft *sim.Contract, econ negotiation.EconContext, fixedType sim.ContractType) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildChatSystemPrompt(econ, fixedType)},
	}

	window := transcript
	if len(window) > transcriptWindow {
		window = window[len(window)-transcriptWindow:]
	}
	for _, turn := range window {
		role := openai.ChatMessageRoleAssistant
		if turn.Role == negotiation.RoleStudent {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	if draft == nil && hintsAgreement(transcript) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: buildAgreementCheck(fixedType),
		})
	}
	return messages
}

func hintsAgreement(transcript []negotiation.Turn) bool {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != negotiation.RoleStudent {
			continue
		}
		last := strings.ToLower(transcript[i].Text)
		for _, phrase := range agreementIndicators {
			if strings.Contains(last, phrase) {
				return true
			}
		}
		return false
	}
	return false
}
