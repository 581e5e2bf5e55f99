package feedback

// topicDepartments is the fixed routing table. Unknown topic tags are
// silently skipped so LLM inventions never route anywhere surprising.
var topicDepartments = map[string]Department{
	"Billing":   DepartmentFinance,
	"Technical": DepartmentEngineering,
	"UX":        DepartmentProduct,
	"Security":  DepartmentInfoSec,
	"General":   DepartmentSupport,
}

// RouteDepartment resolves the destination department for a topic list.
// The first topic with a known mapping wins; no known topic yields Unassigned.
func RouteDepartment(topics []string) Department {
	for _, topic := range topics {
		if dept, ok := topicDepartments[topic]; ok {
			return dept
		}
	}
	return DepartmentUnassigned
}
