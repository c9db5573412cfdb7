// Package events defines the control-loop events emitted on the event bus.
//
// Available event types:
//   - StateTransitionEvent: controller operating-state change
//   - SafetyEvent: safety-gate violation detail
//   - AdaptationEvent: control-strategy adaptation result
//   - CorrectionEvent: real-time correction applied or expired
//   - OptimizationEvent: optimization attempt outcome
package events
