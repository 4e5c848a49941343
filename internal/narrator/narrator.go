package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"faultscope/internal/services"
	"faultscope/internal/services/llm"
)

// Guidance flags beyond the router's clarification set. Router flags are
// valid here too; the maps below cover both.
const (
	FlagNormalConversation = "NORMAL_CONVERSATION"
	FlagIrrelevantRequest  = "IRRELEVANT_REQUEST"
	FlagMissingDataset     = "MISSING_DATASET"
	FlagInvalidSensors     = "INVALID_SENSORS"
	FlagAnalysisSuccess    = "DATA_ANALYSIS_SUCCESS"
)

// guidanceMap selects the internal instruction block injected into the
// responder prompt for a given flag.
var guidanceMap = map[string]string{
	FlagNormalConversation: `Answer the user's question helpfully, BUT ONLY within the scope of IoT, sensors, and engineering.
If the user greets you, introduce yourself as an IoT data analyst for industrial fault analysis.`,

	FlagIrrelevantRequest: `Do not answer the question at all since it is an out of scope and irrelevant request.
Do not provide opinion, explanations or commentary. Reply with a short refusal and name what you can help with.`,

	FlagMissingDataset: `The user asked a technical question but no dataset is indexed yet.
Politely tell them to set the dataset root in the configuration and run the index operation first, then repeat the request.`,

	FlagInvalidSensors: `Inform the user that the specific sensors or types they requested could not be used for the analysis.
Explain that the sensors are not present in the indexed dataset or the name/type combination is incorrect.
Recommend a global analysis (for example "which sensor is best?") or checking the sensor names.`,

	"INVALID_ALGORITHM": `Inform the user that the requested model is not supported.
Say that random forest (rf), logistic regression (lr), and decision tree (dt) are available, and suggest running the default random forest analysis.`,

	"MISSING_SENSOR": `The request is missing a valid sensor name or the requested sensor was not found in the dataset.
Ask the user to specify a valid sensor from the indexed list.`,

	"BAD_TYPE": `The requested sensor stream could not be found: either the sensor name does not exist in the dataset, or the sensor type does not match that sensor.
Ask the user to check the name/type pair.`,

	"BAD_CONDITION": `The condition was not found. Explain that conditions are read from the 'condition' property of each session's metadata.json, and no match exists for the request.`,

	"BAD_LABEL": `The label or fault detail was not found in the dataset.
Explain that these values are read from the metadata.json files and suggest the user verifies the metadata is complete and correctly labeled.`,

	"BAD_SESSION": `The requested session was not found in the indexed dataset.
Ask the user to verify the session folder name or acquisition ID.`,

	"VAGUE": `The request did not name a concrete sensor or scope.
Ask the user to either name a specific sensor from the indexed list or request a global analysis across all sensors.`,

	"TOO_MANY_TARGETS": `The user requested plots for multiple sensor/type pairs.
The plot for the first requested pair was generated; tell the user that charts are created one at a time and to submit the remaining requests individually.`,

	FlagAnalysisSuccess: `The requested operation succeeded. Interpret the Tool Output for the user: name the most discriminative sensors and features, explain what the statistics suggest about machine health, and note that accuracy values are indicative, not a certified model.`,
}

const responderSystemPrompt = `You are an IoT data analyst assistant for an industrial fault analysis system.
You help engineers explore multi-sensor recordings of machinery in healthy (OK) and faulty (KO) states.

Rules:
- Base every number you state on the Tool Output section when present. Never invent measurements or scores.
- When an INTERNAL_GUIDANCE section is present, follow it exactly; it overrides everything else.
- Stay within the scope of engineering, sensors, and this dataset.
- Keep answers concise and technical, and explain what the numbers mean for machine health.`

// Suggestion pairs a displayed example prompt with the literal request
// submitted when the user picks it.
type Suggestion struct {
	Display string
	Request string
}

// Suggestions seeds chat front ends with working example requests.
var Suggestions = []Suggestion{
	{
		Display: "Which features most distinguish OK and KO samples?",
		Request: "Which statistical indices are most relevant for discrimination?",
	},
	{
		Display: "Show me the frequency spectrum for a faulty recording.",
		Request: "Plot the frequency spectrum for a KO session",
	},
	{
		Display: "Plot a raw time series.",
		Request: "Plot the time series for the accelerometer",
	},
}

// Input is everything one narration needs: the user's request, the
// guidance flag chosen by the turn, the rendered tool output, and prior
// conversation turns.
type Input struct {
	Query      string
	Flag       string
	ToolOutput string
	History    []llm.Message
}

// Narrator turns executed work into a conversational reply via the
// language model, with a deterministic template standing in when the
// model endpoint is down.
type Narrator struct {
	client *llm.Client
	logger *slog.Logger
}

// New builds a narrator over the given chat client.
func New(client *llm.Client, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Narrator{client: client, logger: logger.With("component", "narrator")}
}

// Narrate produces the reply for one turn. Transport failures return
// ErrUpstreamLLM; callers degrade to Fallback so the turn still
// completes with the artifact attached.
func (n *Narrator) Narrate(ctx context.Context, in Input) (string, error) {
	messages := make([]llm.Message, 0, len(in.History)+1)
	messages = append(messages, in.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: BuildResponderInput(in.Query, in.Flag, in.ToolOutput)})

	reply, err := n.client.Complete(ctx, responderSystemPrompt, messages)
	if err != nil {
		return "", services.Wrap(services.ErrUpstreamLLM, "narrator", "narrate", "completion failed", err)
	}
	return strings.TrimSpace(reply), nil
}

// BuildResponderInput assembles the user-role message: the query, the
// guidance block for the flag when one exists, and the tool output.
func BuildResponderInput(query, flag, toolOutput string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s", query)
	if guidance, ok := guidanceMap[flag]; ok {
		fmt.Fprintf(&b, "\nINTERNAL_GUIDANCE: %s\n", guidance)
	}
	if toolOutput != "" {
		fmt.Fprintf(&b, "\nTool Output: %s\n", toolOutput)
	}
	return b.String()
}

// Fallback renders a deterministic reply for the given input, used when
// the language model is unreachable. Analysis output is passed through
// verbatim so the user still gets the numbers.
func Fallback(in Input) string {
	const notice = "The language model endpoint is unreachable, so this is a fixed reply."

	switch in.Flag {
	case FlagMissingDataset:
		return notice + " No dataset is indexed yet: set the dataset root in the configuration, run the index operation, and repeat the request."
	case FlagIrrelevantRequest:
		return notice + " The request is outside the scope of this assistant, which answers questions about the indexed sensor dataset."
	case FlagInvalidSensors:
		return notice + " The requested sensors could not be used: they are not present in the indexed dataset or the name/type combination is wrong. Try a global analysis or check the sensor names."
	case "INVALID_ALGORITHM":
		return notice + " The requested algorithm is not supported. Available: random forest (rf), logistic regression (lr), decision tree (dt)."
	case "MISSING_SENSOR":
		return notice + " The request needs a valid sensor name from the indexed dataset."
	case "BAD_TYPE":
		return notice + " No stream matches that sensor name and type. Check the name/type pair against the indexed dataset."
	case "BAD_CONDITION":
		return notice + " That condition does not appear in any session's metadata.json."
	case "BAD_LABEL":
		return notice + " That label or fault detail does not appear in any session's metadata.json."
	case "BAD_SESSION":
		return notice + " That session was not found. Verify the folder name or acquisition ID."
	case "VAGUE":
		return notice + " Name a specific sensor from the indexed dataset, or ask for a global analysis."
	case "TOO_MANY_TARGETS":
		reply := notice + " Charts are generated one sensor at a time; the first requested sensor was plotted."
		if in.ToolOutput != "" {
			reply += "\n\n" + in.ToolOutput
		}
		return reply
	}

	if in.ToolOutput != "" {
		return notice + " The raw output of the requested operation follows.\n\n" + in.ToolOutput
	}
	return notice + " Please try again once the model endpoint is back."
}

// GuidanceFor reports whether a guidance block exists for the flag.
func GuidanceFor(flag string) (string, bool) {
	guidance, ok := guidanceMap[flag]
	return guidance, ok
}
