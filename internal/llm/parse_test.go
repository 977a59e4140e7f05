package llm

import (
	"strings"
	"testing"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    negotiation.Decision
		wantMsg string
		wantErr bool
	}{
		{
			name:    "accept",
			raw:     "DECISION: accept\nMESSAGE: These terms work for me.",
			want:    negotiation.DecisionAccept,
			wantMsg: "These terms work for me.",
		},
		{
			name:    "reject_case_insensitive",
			raw:     "decision: REJECT\nmessage: The wholesale price is too thin.",
			want:    negotiation.DecisionReject,
			wantMsg: "The wholesale price is too thin.",
		},
		{
			name:    "missing_decision",
			raw:     "MESSAGE: hello",
			wantErr: true,
		},
		{
			name:    "counter_is_invalid",
			raw:     "DECISION: counter\nMESSAGE: how about 20?",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		decision, msg, err := parseDecision(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %s %q", tc.name, decision, msg)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if decision != tc.want || msg != tc.wantMsg {
			t.Fatalf("%s: got %s %q, want %s %q", tc.name, decision, msg, tc.want, tc.wantMsg)
		}
	}
}

func TestParseChatEnvelopePlain(t *testing.T) {
	raw := `{"response": "I can do 18 wholesale.", "contract": null, "negotiation_complete": false}`
	env, err := parseChatEnvelope(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Response != "I can do 18 wholesale." {
		t.Fatalf("response = %q", env.Response)
	}
	if env.Contract != nil || env.NegotiationComplete {
		t.Fatalf("unexpected contract or completion flag: %+v", env)
	}
}

func TestParseChatEnvelopeFenced(t *testing.T) {
	raw := "```json\n{\"response\": \"Deal.\", \"contract\": {\"wholesale_price\": 18, \"buyback_price\": 6, \"contract_length\": 3, \"cap_type\": \"fraction\", \"cap_value\": 0.3, \"contract_type\": \"buyback\", \"revenue_share\": 0}, \"negotiation_complete\": true}\n```"
	env, err := parseChatEnvelope(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !env.NegotiationComplete || env.Contract == nil {
		t.Fatalf("fenced envelope not parsed: %+v", env)
	}
	if env.Contract.WholesalePrice != 18 || env.Contract.ContractLength != 3 {
		t.Fatalf("contract fields = %+v", env.Contract)
	}
}

func TestParseChatEnvelopeSurroundingProse(t *testing.T) {
	raw := "Sure, here you go:\n{\"response\": \"Works for me.\", \"contract\": null, \"negotiation_complete\": false}\nLet me know."
	env, err := parseChatEnvelope(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Response != "Works for me." {
		t.Fatalf("response = %q", env.Response)
	}
}

func TestParseChatEnvelopeFailures(t *testing.T) {
	bad := []string{
		"just prose with no json at all",
		`{"response": "", "contract": null}`,
		`{"contract": null, "negotiation_complete": false}`,
	}
	for i, raw := range bad {
		if _, err := parseChatEnvelope(raw); err == nil {
			t.Fatalf("case %d: expected error for %q", i, raw)
		}
	}
}

func TestDraftContractConversion(t *testing.T) {
	env := chatEnvelope{
		Response: "Deal.",
		Contract: &wireContract{
			WholesalePrice: 18, BuybackPrice: 6,
			Length: 4, CapValue: 0.25, RevenueShare: 0.1,
			ContractType: "revenue_sharing", // model lies; fixed type wins
		},
	}
	draft := env.draftContract(sim.ContractBuyback)
	if draft == nil {
		t.Fatalf("draft should not be nil")
	}
	if draft.Type != sim.ContractBuyback {
		t.Fatalf("type = %s, want fixed buyback", draft.Type)
	}
	// Legacy "length" key honored when "contract_length" is absent.
	if draft.Length != 4 {
		t.Fatalf("length = %d, want 4", draft.Length)
	}
	if draft.CapType != sim.CapFraction {
		t.Fatalf("empty cap type should default to fraction, got %s", draft.CapType)
	}

	if (chatEnvelope{Response: "no deal"}).draftContract(sim.ContractBuyback) != nil {
		t.Fatalf("nil contract should convert to nil draft")
	}
}

func TestCleanMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markers_removed", "NEGOTIATION_COMPLETE: yes Great, deal!", "Great, deal!"},
		{"markdown_stripped", "**Bold** and *italic* text", "Bold and italic text"},
		{"json_block_removed", `Here: {"wholesale_price": 18, "buyback_price": 6} done`, "Here: done"},
		{"empty_gets_default", "   ", "Great! Let's proceed with these terms."},
		{"bare_yes_gets_default", "yes", "Great! Let's proceed with these terms."},
	}
	for _, tc := range tests {
		if got := cleanMessage(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestHintsAgreement(t *testing.T) {
	transcript := []negotiation.Turn{
		{Role: negotiation.RoleStudent, Text: "How about 18 wholesale?"},
		{Role: negotiation.RoleSupplier, Text: "I could live with that."},
	}
	if hintsAgreement(transcript) {
		t.Fatalf("plain question should not hint agreement")
	}

	transcript = append(transcript, negotiation.Turn{Role: negotiation.RoleStudent, Text: "Sounds good, lock it in."})
	if !hintsAgreement(transcript) {
		t.Fatalf("agreement phrase not detected")
	}

	// Only the most recent student turn counts.
	transcript = append(transcript,
		negotiation.Turn{Role: negotiation.RoleSupplier, Text: "Great."},
		negotiation.Turn{Role: negotiation.RoleStudent, Text: "Actually, wait."},
	)
	if hintsAgreement(transcript) {
		t.Fatalf("stale agreement phrase should not count")
	}
}

func TestBuildChatMessagesWindowAndAgreementCheck(t *testing.T) {
	econ := negotiation.EconContext{Params: sim.DefaultParams(), History: []int{450, 520}}

	var transcript []negotiation.Turn
	for i := 0; i < 14; i++ {
		transcript = append(transcript, negotiation.Turn{Role: negotiation.RoleStudent, Text: "msg"})
	}
	transcript = append(transcript, negotiation.Turn{Role: negotiation.RoleStudent, Text: "deal, lock it in"})

	messages := buildChatMessages(transcript, nil, econ, sim.ContractBuyback)
	// system + last 10 turns + agreement check
	if len(messages) != 12 {
		t.Fatalf("message count = %d, want 12", len(messages))
	}
	last := messages[len(messages)-1]
	if !strings.Contains(last.Content, "has the student agreed") {
		t.Fatalf("agreement check not appended: %q", last.Content)
	}

	// With a draft already on the table, no agreement check is added.
	draft := &sim.Contract{WholesalePrice: 18, BuybackPrice: 6}
	messages = buildChatMessages(transcript, draft, econ, sim.ContractBuyback)
	if len(messages) != 11 {
		t.Fatalf("message count with draft = %d, want 11", len(messages))
	}
}

func TestBuildEvaluationPromptRevenueShareLine(t *testing.T) {
	econ := negotiation.EconContext{Params: sim.DefaultParams(), History: []int{450, 520, 480}}

	buyback := sim.Contract{WholesalePrice: 17, BuybackPrice: 5, Type: sim.ContractBuyback, Length: 3}
	if strings.Contains(buildEvaluationPrompt(buyback, econ), "Revenue share") {
		t.Fatalf("buyback prompt should not mention revenue share")
	}

	sharing := buyback
	sharing.Type = sim.ContractRevenueSharing
	sharing.RevenueShare = 0.15
	prompt := buildEvaluationPrompt(sharing, econ)
	if !strings.Contains(prompt, "Revenue share: 15.00%") {
		t.Fatalf("revenue share line missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Historical demand range: 450 to 520") {
		t.Fatalf("demand context missing:\n%s", prompt)
	}
}
