package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// Input is everything the synthesizer may speak about. The message is
// grounded in these facts only.
type Input struct {
	Query      *models.Query
	Intent     models.Intent
	Products   []models.RankedProduct
	Comparison *models.Comparison
	Degraded   bool
}

// Output is the spoken layer of the response. GeneratorUsed reports
// whether the language model produced the message or the deterministic
// template did.
type Output struct {
	Message       string
	Followups     []string
	GeneratorUsed bool
}

type Synthesizer struct {
	gen    Generator
	logger logger.Logger
}

func New(gen Generator, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		gen:    gen,
		logger: log.WithFields(map[string]interface{}{"stage": "synthesizer"}),
	}
}

// Synthesize builds the response message and follow-up suggestions.
// Clarify and unknown intents never go through the generator; for the
// rest a generator failure degrades to the template message.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) Output {
	switch in.Intent.Kind {
	case models.IntentClarify:
		return Output{Message: clarifyMessage(in), Followups: followupsFor(in)}
	case models.IntentUnknown:
		return Output{
			Message:   "I couldn't work out what you're after. Could you describe the product you want in a few words?",
			Followups: followupsFor(in),
		}
	}

	template := templateMessage(in)

	if s.gen != nil {
		if message, err := s.gen.Generate(ctx, buildPrompt(in, template)); err == nil {
			return Output{Message: message, Followups: followupsFor(in), GeneratorUsed: true}
		} else {
			s.logger.Warn("generation failed, using template message", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return Output{Message: template, Followups: followupsFor(in)}
}

// templateMessage is the deterministic rendering used when no generator
// is configured or it fails. It only states facts from the input.
func templateMessage(in Input) string {
	var b strings.Builder

	if in.Degraded {
		b.WriteString("I ran out of time before finishing everything, so these are partial results. ")
	}

	switch in.Intent.Kind {
	case models.IntentCompare:
		if in.Comparison != nil && in.Comparison.WinnerID != "" {
			b.WriteString(fmt.Sprintf("I compared %d products. ", len(in.Comparison.ProductIDs)))
			if winner := productByID(in.Products, in.Comparison.WinnerID); winner != nil {
				b.WriteString(fmt.Sprintf("%s comes out ahead: %s.", winner.Product.Name, in.Comparison.WinnerReason))
			} else {
				b.WriteString(fmt.Sprintf("The winner is %s.", in.Comparison.WinnerReason))
			}
		} else if len(in.Products) > 0 {
			b.WriteString(fmt.Sprintf("I found %d products to compare but couldn't pick a clear winner.", len(in.Products)))
		} else {
			b.WriteString("I couldn't find enough products to build a comparison.")
		}

	case models.IntentRecommend:
		if len(in.Products) > 0 {
			b.WriteString(fmt.Sprintf("Here are %d picks for you, starting with %s.", len(in.Products), in.Products[0].Product.Name))
		} else {
			b.WriteString("I couldn't find anything to recommend for those constraints.")
		}

	case models.IntentPurchase:
		if len(in.Products) > 0 {
			top := in.Products[0]
			b.WriteString(fmt.Sprintf("%s is the strongest match", top.Product.Name))
			if best := top.Product.BestPrice(); best != nil {
				b.WriteString(fmt.Sprintf(", available at %s for %.2f %s", best.Retailer, best.Amount, best.Currency))
			}
			b.WriteString(".")
		} else {
			b.WriteString("I couldn't find that product in stock anywhere right now.")
		}

	default: // search
		if len(in.Products) > 0 {
			b.WriteString(fmt.Sprintf("I found %d matching products, topped by %s.", len(in.Products), in.Products[0].Product.Name))
		} else {
			b.WriteString("No products matched. Try loosening the filters or rephrasing.")
		}
	}

	return b.String()
}

func clarifyMessage(in Input) string {
	f := in.Intent.Filters
	if f.Category == "" {
		return "What kind of product are you shopping for?"
	}
	if f.PriceMax == nil && f.PriceMin == nil {
		return fmt.Sprintf("Got it, %s. Do you have a budget in mind?", f.Category)
	}
	return fmt.Sprintf("Could you tell me more about the %s you're looking for, like a brand or color?", f.Category)
}

func followupsFor(in Input) []string {
	switch in.Intent.Kind {
	case models.IntentSearch:
		if len(in.Products) >= 2 {
			return []string{"Compare the top results", "Show only items under a price", "See reviews for the first one"}
		}
		return []string{"Broaden the search", "Try a different category"}
	case models.IntentCompare:
		return []string{"Buy the winner", "Add another product to the comparison", "See full reviews"}
	case models.IntentRecommend:
		return []string{"Compare these picks", "Narrow it down by budget", "Show only one brand"}
	case models.IntentPurchase:
		return []string{"Check availability at other retailers", "Set a price alert"}
	default:
		return []string{"Search for a product", "Ask for a recommendation"}
	}
}

// buildPrompt grounds the generator in the template facts plus a short
// product digest. The generator rephrases; it may not add data.
func buildPrompt(in Input, template string) string {
	var b strings.Builder
	b.WriteString("Rephrase the following result summary conversationally, keeping every fact and adding none.\n\n")
	b.WriteString("Summary: " + template + "\n")

	if len(in.Products) > 0 {
		b.WriteString("Products:\n")
		limit := len(in.Products)
		if limit > 5 {
			limit = 5
		}
		for _, rp := range in.Products[:limit] {
			b.WriteString("- " + rp.Product.Name)
			if best := rp.Product.BestPrice(); best != nil {
				b.WriteString(fmt.Sprintf(" (%.2f %s at %s", best.Amount, best.Currency, best.Retailer))
				if lo, hi, ok := rp.Product.PriceRange(); ok && hi > lo {
					b.WriteString(fmt.Sprintf(", %.2f to %.2f across retailers", lo, hi))
				}
				b.WriteString(")")
			}
			if rp.MatchReason != "" {
				b.WriteString("; matched because: " + rp.MatchReason)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func productByID(products []models.RankedProduct, id string) *models.RankedProduct {
	for i := range products {
		if products[i].Product.ID == id {
			return &products[i]
		}
	}
	return nil
}
