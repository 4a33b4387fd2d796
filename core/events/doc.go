// Package events defines the typed events a dialogue session reports to its
// observers.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - synthesizer.*
//   - recognizer.*
//   - turn.*
//   - session.*
//
// Events are observations only. Receivers cannot change session state by
// handling them, and they are delivered from the session's event loop, so
// handlers should not block.
//
// synthesizer events
//
//   - SynthesisStarted (synthesizer.started): agent audio started playing.
//   - SynthesisFinished (synthesizer.finished): agent audio finished playing.
//   - SynthesisFailed (synthesizer.failed): the engine aborted the utterance.
//   - SynthesisStopped (synthesizer.stopped): agent audio was cut off, either
//     by barge-in or by turn finalization.
//
// recognizer events
//
//   - ListeningStarted (recognizer.listening_started): a recognition attempt
//     started; includes the attempt number.
//   - UserAudioStarted (recognizer.audio_started): voiced input detected.
//   - UserAudioEnded (recognizer.audio_ended): voiced input ceased.
//   - TranscriptFinal (recognizer.transcript_final): best transcript of the
//     attempt.
//   - TranscriptDiscarded (recognizer.transcript_discarded): transcript matched
//     an agent echo phrase and was ignored.
//   - NoMatch (recognizer.no_match): audio heard but not decodable.
//   - RecognitionFailed (recognizer.failed): recognizer error.
//   - ListeningEnded (recognizer.listening_ended): the attempt closed.
//
// turn events
//
//   - TurnStarted (turn.started): a prompt became the active turn.
//   - TurnReprompted (turn.reprompted): the agent re-prompts before the next
//     attempt.
//   - TurnNotice (turn.notice): a user-facing message, e.g. denied microphone
//     permission.
//   - TurnResolved (turn.resolved): terminal outcome with answer or sentinel.
//
// session events
//
//   - SessionStateChanged (session.state_changed): channel health changed.
//   - MessageSent (session.message_sent): outbound protocol message.
//   - MessageReceived (session.message_received): inbound protocol message.
//   - SessionCompleted (session.completed): every prompt has an answer.
//   - SessionEnded (session.ended): the session was terminated.
package events
