package response

// StepTemplate carries the static, per-phase descriptive text. Presentation
// hints (icon, color) deliberately live in the API layer, keyed by step id.
type StepTemplate struct {
	ID          StepID
	Name        string
	Description string
	Guidance    string
}

var stepTemplates = map[StepID]StepTemplate{
	StepDetect: {
		ID:          StepDetect,
		Name:        "Detect",
		Description: "Identify and confirm the security incident",
		Guidance:    "Verify the alert source, establish the initial scope, and record indicators of compromise before moving on.",
	},
	StepContain: {
		ID:          StepContain,
		Name:        "Contain",
		Description: "Limit the spread and impact of the incident",
		Guidance:    "Isolate affected systems, revoke compromised credentials, and preserve volatile evidence while containing.",
	},
	StepEradicate: {
		ID:          StepEradicate,
		Name:        "Eradicate",
		Description: "Remove the threat from the environment",
		Guidance:    "Eliminate malware and attacker persistence, patch the exploited weakness, and validate the environment is clean.",
	},
	StepRecover: {
		ID:          StepRecover,
		Name:        "Recover",
		Description: "Restore systems to normal operation",
		Guidance:    "Restore from known-good state, monitor for recurrence, and confirm business services are fully operational.",
	},
	StepCommunicate: {
		ID:          StepCommunicate,
		Name:        "Communicate",
		Description: "Report to stakeholders and close out",
		Guidance:    "Notify stakeholders and regulators as required, record lessons learned, and archive the incident report.",
	},
}

// TemplateFor returns the static template for a step id.
func TemplateFor(id StepID) (StepTemplate, bool) {
	tpl, ok := stepTemplates[id]
	return tpl, ok
}

// newStepFromTemplate returns a fresh pending step for the given phase.
func newStepFromTemplate(id StepID) Step {
	tpl := stepTemplates[id]
	return Step{
		ID:          id,
		Name:        tpl.Name,
		Description: tpl.Description,
		Guidance:    tpl.Guidance,
		Status:      StatusPending,
		Actions:     []Action{},
		Evidence:    []Evidence{},
		Logs:        []LogEntry{},
	}
}
