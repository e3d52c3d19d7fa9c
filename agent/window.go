package agent

import "github.com/BaSui01/sunyadvisor/types"

// TrimToBudget keeps msgs within budget tokens.
//
// A leading system message is never dropped. The remaining messages are
// grouped so an assistant message with tool calls stays with its tool
// results, and groups are dropped oldest first, two at a time, until the
// total fits. If the system message alone exceeds the budget only it is
// returned. budget <= 0 disables trimming. It returns the kept messages and
// the number dropped.
func TrimToBudget(msgs []types.Message, counter types.TokenCounter, budget int) ([]types.Message, int) {
	if budget <= 0 || len(msgs) == 0 {
		return msgs, 0
	}
	if counter == nil {
		counter = types.EstimateCounter{}
	}

	total := 0
	sizes := make([]int, len(msgs))
	for i, m := range msgs {
		sizes[i] = types.CountMessageTokens(counter, m)
		total += sizes[i]
	}
	if total <= budget {
		return msgs, 0
	}

	head := 0
	if msgs[0].Role == types.RoleSystem {
		head = 1
	}
	groups := groupMessages(msgs, head)

	cut := head // msgs[head:cut] are dropped
	for g := 0; g < len(groups) && total > budget; g += 2 {
		for k := g; k < g+2 && k < len(groups); k++ {
			for i := groups[k][0]; i < groups[k][1]; i++ {
				total -= sizes[i]
			}
			cut = groups[k][1]
		}
	}

	kept := make([]types.Message, 0, head+len(msgs)-cut)
	kept = append(kept, msgs[:head]...)
	kept = append(kept, msgs[cut:]...)
	return kept, cut - head
}

// groupMessages splits msgs[from:] into [start, end) ranges. An assistant
// message carrying tool calls absorbs the tool messages that follow it.
func groupMessages(msgs []types.Message, from int) [][2]int {
	var groups [][2]int
	for i := from; i < len(msgs); {
		end := i + 1
		if msgs[i].Role == types.RoleAssistant && msgs[i].HasToolCalls() {
			for end < len(msgs) && msgs[end].Role == types.RoleTool {
				end++
			}
		}
		groups = append(groups, [2]int{i, end})
		i = end
	}
	return groups
}
