package content

import (
	"encoding/json"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// ToolInput is the decoded parameter block of a tool invocation.
type ToolInput interface {
	toolInput()
}

type BashParams struct {
	Command         string `json:"command" validate:"required"`
	Description     string `json:"description"`
	Timeout         int    `json:"timeout" validate:"gte=0"`
	RunInBackground bool   `json:"run_in_background"`
}

type ReadParams struct {
	FilePath string `json:"file_path" validate:"required"`
	Offset   int    `json:"offset" validate:"gte=0"`
	Limit    int    `json:"limit" validate:"gte=0"`
}

type WriteParams struct {
	FilePath string `json:"file_path" validate:"required"`
	Content  string `json:"content"`
}

type EditParams struct {
	FilePath   string `json:"file_path" validate:"required"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

type EditItem struct {
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

type MultiEditParams struct {
	FilePath string     `json:"file_path" validate:"required"`
	Edits    []EditItem `json:"edits" validate:"required,min=1,dive"`
}

type GlobParams struct {
	Pattern string `json:"pattern" validate:"required"`
	Path    string `json:"path"`
}

type GrepParams struct {
	Pattern    string `json:"pattern" validate:"required"`
	Path       string `json:"path"`
	Glob       string `json:"glob"`
	Type       string `json:"type"`
	OutputMode string `json:"output_mode" validate:"omitempty,oneof=content files_with_matches count"`
	Multiline  bool   `json:"multiline"`
	HeadLimit  int    `json:"head_limit" validate:"gte=0"`
	Offset     int    `json:"offset" validate:"gte=0"`
}

type TaskParams struct {
	Prompt          string `json:"prompt" validate:"required"`
	SubagentType    string `json:"subagent_type"`
	Description     string `json:"description"`
	Model           string `json:"model"`
	RunInBackground bool   `json:"run_in_background"`
	Resume          string `json:"resume"`
}

type TodoItem struct {
	Content    string `json:"content" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=pending in_progress completed"`
	ActiveForm string `json:"activeForm"`
	ID         string `json:"id"`
	Priority   string `json:"priority"`
}

type TodoWriteParams struct {
	Todos []TodoItem `json:"todos" validate:"required,dive"`
}

type QuestionOption struct {
	Label       string `json:"label" validate:"required"`
	Description string `json:"description"`
}

type Question struct {
	Question    string           `json:"question" validate:"required"`
	Header      string           `json:"header"`
	Options     []QuestionOption `json:"options" validate:"dive"`
	MultiSelect bool             `json:"multiSelect"`
}

type AskUserQuestionParams struct {
	Questions []Question `json:"questions" validate:"required_without=Question,dive"`
	Question  string     `json:"question"`
}

type ExitPlanModeParams struct {
	Plan          string `json:"plan"`
	LaunchSwarm   bool   `json:"launchSwarm"`
	TeammateCount int    `json:"teammateCount" validate:"gte=0"`
}

// GenericParams holds parameters of tools outside the registry, or of
// registered tools whose parameters could not be decoded.
type GenericParams struct {
	Fields map[string]any
	Raw    json.RawMessage
}

func (*BashParams) toolInput()            {}
func (*ReadParams) toolInput()            {}
func (*WriteParams) toolInput()           {}
func (*EditParams) toolInput()            {}
func (*MultiEditParams) toolInput()       {}
func (*GlobParams) toolInput()            {}
func (*GrepParams) toolInput()            {}
func (*TaskParams) toolInput()            {}
func (*TodoWriteParams) toolInput()       {}
func (*AskUserQuestionParams) toolInput() {}
func (*ExitPlanModeParams) toolInput()    {}
func (*GenericParams) toolInput()         {}

type toolSpec struct {
	input  func() ToolInput
	output outputParser
}

var tools = map[string]toolSpec{
	"Bash":              {input: func() ToolInput { return &BashParams{} }, output: parseBashOutput},
	"Read":              {input: func() ToolInput { return &ReadParams{} }, output: parseReadOutput},
	"Write":             {input: func() ToolInput { return &WriteParams{} }, output: parseWriteOutput},
	"Edit":              {input: func() ToolInput { return &EditParams{} }, output: parseEditOutput},
	"MultiEdit":         {input: func() ToolInput { return &MultiEditParams{} }},
	"Glob":              {input: func() ToolInput { return &GlobParams{} }},
	"Grep":              {input: func() ToolInput { return &GrepParams{} }},
	"Task":              {input: func() ToolInput { return &TaskParams{} }, output: parseTaskOutput},
	"Agent":             {input: func() ToolInput { return &TaskParams{} }, output: parseTaskOutput},
	"TodoWrite":         {input: func() ToolInput { return &TodoWriteParams{} }},
	"AskUserQuestion":   {input: func() ToolInput { return &AskUserQuestionParams{} }, output: parseAskUserQuestionOutput},
	"ask_user_question": {input: func() ToolInput { return &AskUserQuestionParams{} }, output: parseAskUserQuestionOutput},
	"ExitPlanMode":      {input: func() ToolInput { return &ExitPlanModeParams{} }, output: parseExitPlanModeOutput},
}

var validate = validator.New()

// IsSubagentTool reports whether name spawns a sub-agent conversation.
func IsSubagentTool(name string) bool {
	return name == "Task" || name == "Agent"
}

type ToolInfo struct {
	Name        string
	Input       string
	TypedOutput bool
}

// Tools lists the tools with typed parameter support, sorted by name.
func Tools() []ToolInfo {
	out := make([]ToolInfo, 0, len(tools))
	for name, spec := range tools {
		out = append(out, ToolInfo{
			Name:        name,
			Input:       typeName(spec.input()),
			TypedOutput: spec.output != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func typeName(in ToolInput) string {
	switch in.(type) {
	case *BashParams:
		return "BashParams"
	case *ReadParams:
		return "ReadParams"
	case *WriteParams:
		return "WriteParams"
	case *EditParams:
		return "EditParams"
	case *MultiEditParams:
		return "MultiEditParams"
	case *GlobParams:
		return "GlobParams"
	case *GrepParams:
		return "GrepParams"
	case *TaskParams:
		return "TaskParams"
	case *TodoWriteParams:
		return "TodoWriteParams"
	case *AskUserQuestionParams:
		return "AskUserQuestionParams"
	case *ExitPlanModeParams:
		return "ExitPlanModeParams"
	}
	return "GenericParams"
}

// DecodeInput decodes raw tool parameters. Registered tools are decoded
// strictly (JSON types plus validation) first, then leniently with weak type
// conversion. Anything that still fails becomes GenericParams.
func DecodeInput(name string, raw json.RawMessage) (ToolInput, Decoding) {
	spec, ok := tools[name]
	if !ok {
		return genericParams(raw), DecodedGeneric
	}

	in := spec.input()
	if err := json.Unmarshal(raw, in); err == nil {
		if err := validate.Struct(in); err == nil {
			return in, DecodedStrict
		}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return genericParams(raw), DecodedGeneric
	}
	in = spec.input()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           in,
	})
	if err != nil {
		return genericParams(raw), DecodedGeneric
	}
	if err := dec.Decode(fields); err != nil {
		return genericParams(raw), DecodedGeneric
	}
	return in, DecodedLenient
}

func genericParams(raw json.RawMessage) *GenericParams {
	p := &GenericParams{Raw: raw}
	_ = json.Unmarshal(raw, &p.Fields)
	return p
}

// filePathOf returns the file a file-oriented tool operated on.
func filePathOf(in ToolInput) string {
	switch v := in.(type) {
	case *ReadParams:
		return v.FilePath
	case *WriteParams:
		return v.FilePath
	case *EditParams:
		return v.FilePath
	case *MultiEditParams:
		return v.FilePath
	}
	return ""
}
