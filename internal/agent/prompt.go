package agent

import "strings"

// DefaultSystemTemplate instructs the model to answer with exactly one
// JSON action directive per cycle. It is configuration, not logic:
// deployments may override it (AGENT_SYSTEM_TEMPLATE) as long as the
// replacement keeps the recognized placeholders {tools}, {tool_names}
// and {agent_scratchpad}. The current user utterance travels as its own
// human message, so the template needs no {input} placeholder.
const DefaultSystemTemplate = `Respond to the human as helpfully and accurately as possible. You have access to the following tools:

{tools}

Use a json blob to specify a tool by providing an action key (tool name) and an action_input key (tool input).

Valid "action" values: "Final Answer" or {tool_names}

Provide only ONE action per $JSON_BLOB, as shown:

` + "```" + `
{
  "action": $TOOL_NAME,
  "action_input": $INPUT
}
` + "```" + `

Follow this format:

Question: input question to answer
Thought: {agent_scratchpad}
Observation: action result
(Thought/Action/Observation ONE times per action)
Thought: I know what to respond
Action: output final answer.
Begin! Reminder to ALWAYS respond with a valid json blob of a single action. Use tools if necessary. Respond directly if appropriate. Format is Action:` + "```" + `$JSON_BLOB` + "```" + `then Observation`

// RenderSystem fills the recognized placeholders of a system template.
func RenderSystem(tmpl, toolList, toolNames, scratchpad string) string {
	return strings.NewReplacer(
		"{tools}", toolList,
		"{tool_names}", toolNames,
		"{agent_scratchpad}", scratchpad,
	).Replace(tmpl)
}
