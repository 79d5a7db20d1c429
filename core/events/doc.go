// Package events defines the typed orchestration event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - tool_call.*
//   - assistant_speech.*
//   - turn_state.*
//   - session.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text/state for the current stream/turn phase.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): speech activity began.
//   - UserSpeechEnded (user_input.speech_ended): speech activity ended.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim full transcript snapshot.
//   - UserTranscriptFinal (user_input.transcript_final): terminal full
//     transcript for the utterance.
//   - UserDishSelected (user_input.dish_selected): a dish option picked in
//     the UI.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): a reasoning pass
//     started for the active persona.
//   - AssistantResponseFinal (assistant_response.final): text the assistant
//     settled on for the turn. Never emitted for cancelled turns.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): validation or execution failed.
//
// assistant_speech events
//
//   - AssistantSpeechFrame (assistant_speech.frame): synthesized speech audio
//     frame.
//   - AssistantSpeechFinal (assistant_speech.final): TTS generation ended.
//   - AssistantSpeechUnavailable (assistant_speech.unavailable): synthesis
//     failed after every attempt and the response is text only.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): current turn started.
//   - TurnCompleted (turn_state.completed): current turn completed
//     successfully.
//   - TurnFailed (turn_state.failed): current turn failed.
//   - TurnCancelled (turn_state.cancelled): current turn was cancelled.
//
// session events
//
//   - PersonaChanged (session.persona_changed): committed handoff.
//   - CameraRequested, CameraReleased: camera session boundaries.
//   - FrameAttached (session.frame_attached): sampled frame attached to a
//     user turn.
//   - TimerStarted, TimerFinished: kitchen timer lifecycle.
//   - ContextCompacted (session.context_compacted): background compaction
//     finished, applied or discarded.
package events
