package research

import (
	"slices"
	"strings"

	"github.com/insightai/insight/internal/domain"
)

// Canned answers served when no backend is configured or reachable.
var (
	demoCortensor = domain.Parsed{
		Summary: "Cortensor is a decentralized AI inference protocol combining distributed computing with blockchain-based validation for trustworthy AI.",
		BulletPoints: []string{
			"Cortensor enables decentralized AI inference across a global network of nodes",
			"Router nodes handle task allocation and intelligent workload distribution",
			"Miner nodes execute inference tasks and earn rewards for quality work",
			"PoI/PoUW mechanisms provide cryptographic proofs of computation validity",
			"L3 AppChain handles privacy-preserving AI computations",
			"ERC-8004 integration enables agent identity and discoverability",
		},
	}

	demoAI = domain.Parsed{
		Summary: "The latest trends in AI focus on decentralization, verifiable computation, and agentic applications that can act autonomously.",
		BulletPoints: []string{
			"Agentic AI systems can perform tasks autonomously with minimal human intervention",
			"Decentralized inference reduces single points of failure and increases trust",
			"Verifiable AI uses cryptographic proofs to validate model outputs",
			"Multi-model consensus improves accuracy and reduces hallucinations",
			"Web3 integration enables tokenized incentives for AI service providers",
		},
	}

	demoDefault = domain.Parsed{
		Summary: "Based on analysis of the query, here are the key research findings compiled from decentralized inference.",
		BulletPoints: []string{
			"Decentralized AI inference distributes computation across multiple nodes for reliability and trust",
			"Proof of Inference (PoI) validates that multiple miners produced consistent results",
			"Proof of Useful Work (PoUW) scores the quality and usefulness of AI outputs",
			"Multi-layer blockchain architecture (L1-L3) enables scalable AI orchestration",
			"Token-based incentives align miner behavior with network quality goals",
		},
	}
)

type demoRule struct {
	keywords []string
	answer   domain.Parsed
}

// First matching rule wins.
var demoRules = []demoRule{
	{keywords: []string{"cortensor", "decentralized inference"}, answer: demoCortensor},
	{keywords: []string{"ai", "artificial intelligence"}, answer: demoAI},
}

// SelectDemo picks a canned answer by case-insensitive keyword match.
// The returned value is a copy; callers may modify it freely.
func SelectDemo(query string) domain.Parsed {
	q := strings.ToLower(query)
	for _, rule := range demoRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return clone(rule.answer)
			}
		}
	}
	return clone(demoDefault)
}

func clone(p domain.Parsed) domain.Parsed {
	return domain.Parsed{Summary: p.Summary, BulletPoints: slices.Clone(p.BulletPoints)}
}
