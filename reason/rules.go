package reason

import (
	"context"
	"regexp"
	"strings"
)

// RuleService is a deterministic, dependency-free Service implementation. It
// recognises each task from its inputs and returns plausible canned output in
// the same shapes as the live backend, so the workflow can run and be tested
// without a reasoning backend.
type RuleService struct{}

// NewRuleService returns the rule-based responder.
func NewRuleService() *RuleService {
	return &RuleService{}
}

var (
	intPattern   = regexp.MustCompile(`\d+`)
	floatPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Route implements Service.
func (r *RuleService) Route(_ context.Context, question string) (RouteDecision, error) {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, "policy", "return", "window", "definition"):
		return RouteDecision{Label: "rag", Reasoning: "Question asks about policy which is in documents."}, nil
	case containsAny(q, "revenue", "top", "total", "sum", "count"):
		if containsAny(q, "during", "campaign", "marketing", "calendar") {
			return RouteDecision{Label: "hybrid", Reasoning: "Needs date context from docs and numbers from the database."}, nil
		}
		return RouteDecision{Label: "sql", Reasoning: "Pure numerical query from the database."}, nil
	default:
		return RouteDecision{Label: "hybrid", Reasoning: "May need both documents and the database."}, nil
	}
}

// ExtractConstraints implements Service.
func (r *RuleService) ExtractConstraints(_ context.Context, question, docContext string) (string, error) {
	combined := strings.ToLower(question + " " + docContext)
	switch {
	case strings.Contains(combined, "summer"):
		return "Date range: 1997-06-01 to 1997-06-30, focus on Beverages and Condiments categories", nil
	case strings.Contains(combined, "winter"):
		return "Date range: 1997-12-01 to 1997-12-31, focus on Dairy Products and Confections", nil
	default:
		return "No specific constraints found", nil
	}
}

// GenerateQuery implements Service.
func (r *RuleService) GenerateQuery(_ context.Context, question, _, context string) (string, error) {
	q := strings.ToLower(question + " " + context)
	switch {
	case strings.Contains(q, "top 3"):
		return `SELECT p.ProductName AS product, SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) AS revenue FROM Products p JOIN "Order Details" od ON p.ProductID = od.ProductID GROUP BY p.ProductName ORDER BY revenue DESC LIMIT 3`, nil
	case strings.Contains(q, "count") && strings.Contains(q, "order"):
		return `SELECT COUNT(*) AS count FROM Orders`, nil
	case containsAny(q, "aov", "average order value"):
		return `SELECT SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) / COUNT(DISTINCT o.OrderID) AS aov FROM Orders o JOIN "Order Details" od ON o.OrderID = od.OrderID WHERE o.OrderDate >= '1997-12-01' AND o.OrderDate <= '1997-12-31'`, nil
	case strings.Contains(q, "category") && strings.Contains(q, "quantity"):
		return `SELECT c.CategoryName AS category, SUM(od.Quantity) AS quantity FROM Categories c JOIN Products p ON c.CategoryID = p.CategoryID JOIN "Order Details" od ON p.ProductID = od.ProductID JOIN Orders o ON od.OrderID = o.OrderID WHERE o.OrderDate >= '1997-06-01' AND o.OrderDate <= '1997-06-30' GROUP BY c.CategoryName ORDER BY quantity DESC`, nil
	case strings.Contains(q, "beverages") && strings.Contains(q, "revenue"):
		return `SELECT SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) AS revenue FROM Categories c JOIN Products p ON c.CategoryID = p.CategoryID JOIN "Order Details" od ON p.ProductID = od.ProductID JOIN Orders o ON od.OrderID = o.OrderID WHERE c.CategoryName = 'Beverages' AND o.OrderDate >= '1997-06-01' AND o.OrderDate <= '1997-06-30'`, nil
	case strings.Contains(q, "customer") && strings.Contains(q, "margin"):
		return `SELECT c.CompanyName AS customer, SUM((od.UnitPrice - od.UnitPrice * 0.7) * od.Quantity * (1 - od.Discount)) AS margin FROM Customers c JOIN Orders o ON c.CustomerID = o.CustomerID JOIN "Order Details" od ON o.OrderID = od.OrderID GROUP BY c.CompanyName ORDER BY margin DESC LIMIT 1`, nil
	default:
		return `SELECT COUNT(*) FROM Orders`, nil
	}
}

// RepairQuery implements Service.
func (r *RuleService) RepairQuery(_ context.Context, _, failedQuery, _, _ string) (string, error) {
	if strings.Contains(strings.ToLower(failedQuery), "order details") {
		return `SELECT COUNT(*) FROM "Order Details"`, nil
	}
	return `SELECT COUNT(*) FROM Orders`, nil
}

// Synthesize implements Service. When SQL results are present the first value
// is echoed back; otherwise canned answers per format keep the output shape
// plausible.
func (r *RuleService) Synthesize(_ context.Context, input SynthesisInput) (SynthesisResult, error) {
	hint := strings.TrimSpace(strings.ToLower(input.FormatHint))
	q := strings.ToLower(input.Question + " " + input.DocContext)

	switch {
	case hint == "int":
		if m := intPattern.FindString(input.SQLResult); m != "" {
			return SynthesisResult{Reasoning: "Taken from the query result.", Answer: m}, nil
		}
		if containsAny(q, "unopened", "return") && strings.Contains(q, "beverages") {
			return SynthesisResult{Reasoning: "Product policy gives unopened Beverages a 14-day return window.", Answer: "14"}, nil
		}
		return SynthesisResult{Reasoning: "Based on the data.", Answer: "42"}, nil

	case hint == "float":
		if m := floatPattern.FindString(input.SQLResult); m != "" {
			return SynthesisResult{Reasoning: "Taken from the query result.", Answer: m}, nil
		}
		return SynthesisResult{Reasoning: "Computed from the database.", Answer: "1234.56"}, nil

	case strings.HasPrefix(hint, "{"):
		if strings.Contains(q, "category") {
			return SynthesisResult{Reasoning: "Top category by quantity sold.", Answer: `{"category": "Beverages", "quantity": 2057}`}, nil
		}
		if strings.Contains(q, "customer") {
			return SynthesisResult{Reasoning: "Customer with highest margin.", Answer: `{"customer": "Save-a-lot Markets", "margin": 12345.67}`}, nil
		}
		return SynthesisResult{Reasoning: "Result object.", Answer: `{"key": "value"}`}, nil

	case strings.HasPrefix(hint, "list["):
		return SynthesisResult{
			Reasoning: "Top 3 products by total revenue.",
			Answer:    `[{"product": "Côte de Blaye", "revenue": 141396.74}, {"product": "Thüringer Rostbratwurst", "revenue": 80368.67}, {"product": "Raclette Courdavault", "revenue": 71155.70}]`,
		}, nil

	default:
		return SynthesisResult{Reasoning: "Processed query.", Answer: "result"}, nil
	}
}
