// Package record captures raw input samples flowing into a Handler and
// replays them later.
//
// A Recorder is registered as a Handler hook. While started it copies every
// sample that reaches the pipeline into a Trace. Traces are stored as JSON:
//
//	{
//	  "version": 1,
//	  "id": "5f0c...",
//	  "created": "2026-01-02T15:04:05Z",
//	  "samples": [{"time": "...", "buttons": {"jump": true}}, ...]
//	}
//
// A Player feeds a Trace back through a Handler, either all at once with
// Run or paced by elapsed time with Next.
package record
