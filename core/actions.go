package core

import "maps"

// EventActions encodes side‑effects or orchestration signals attached to an Event.
// All fields are optional pointers / maps so absence can be distinguished from zero values.
// The engine interprets these after persistence (see engine event pump).
type EventActions struct {
	SkipSummarization    *bool          `json:"skip_summarization,omitempty"`
	StateDelta           map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta        map[string]int `json:"artifact_delta,omitempty"`
	TransferToAgent      *string        `json:"transfer_to_agent,omitempty"`
	Escalate             *bool          `json:"escalate,omitempty"`
	EndInvocation        *bool          `json:"end_invocation,omitempty"`
	RequestedAuthConfigs map[string]any `json:"requested_auth_configs,omitempty"`
}

// IsEmpty reports whether no signal or delta is set.
func (a EventActions) IsEmpty() bool {
	return a.SkipSummarization == nil &&
		len(a.StateDelta) == 0 &&
		len(a.ArtifactDelta) == 0 &&
		a.TransferToAgent == nil &&
		a.Escalate == nil &&
		a.EndInvocation == nil &&
		len(a.RequestedAuthConfigs) == 0
}

// MergeEventActions combines an ordered list of actions into a single value.
// Map fields are unioned key-wise and scalar fields overwritten, so on
// conflict the later-produced actions win. Used by the tool fan-out to attach
// one consolidated action set to the merged function-response event.
func MergeEventActions(actions ...EventActions) EventActions {
	var out EventActions
	for _, a := range actions {
		if a.SkipSummarization != nil {
			out.SkipSummarization = a.SkipSummarization
		}
		if len(a.StateDelta) > 0 {
			if out.StateDelta == nil {
				out.StateDelta = make(map[string]any, len(a.StateDelta))
			}
			maps.Copy(out.StateDelta, a.StateDelta)
		}
		if len(a.ArtifactDelta) > 0 {
			if out.ArtifactDelta == nil {
				out.ArtifactDelta = make(map[string]int, len(a.ArtifactDelta))
			}
			maps.Copy(out.ArtifactDelta, a.ArtifactDelta)
		}
		if a.TransferToAgent != nil {
			out.TransferToAgent = a.TransferToAgent
		}
		if a.Escalate != nil {
			out.Escalate = a.Escalate
		}
		if a.EndInvocation != nil {
			out.EndInvocation = a.EndInvocation
		}
		if len(a.RequestedAuthConfigs) > 0 {
			if out.RequestedAuthConfigs == nil {
				out.RequestedAuthConfigs = make(map[string]any, len(a.RequestedAuthConfigs))
			}
			maps.Copy(out.RequestedAuthConfigs, a.RequestedAuthConfigs)
		}
	}
	return out
}
