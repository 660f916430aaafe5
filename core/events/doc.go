// Package events defines the typed socket event contract shared by the
// distribution layer and the transport.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*: events every participant endpoint may receive.
//
// Semantics used across the package:
//
//   - Transcript: recognized speech text in the speaker's language; partial
//     until marked final.
//   - Translation: final transcript text rendered into one listener target
//     language.
//   - AudienceCount: full recomputed membership snapshot, never a diff.
//   - Error: terminal session failure with a user-presentable message.
//
// session events
//
//   - TranscriptEvent (session.transcript): transcript text, partial or
//     final.
//   - TranslationEvent (session.translation): translated text for one target
//     language.
//   - AudienceCountEvent (session.audience_count): listener count and
//     per-language distribution.
//   - ErrorEvent (session.error): terminal failure message.
package events
