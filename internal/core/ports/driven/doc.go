// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceReader: Reads scraper output for a configured source
//   - HistoryStore: Delivery history persistence
//   - Deliverer: Hands a payload to one delivery channel
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model operations. Without it, only mock analysis
//     and keyword-only filtering are available.
//   - RelevanceChecker / DocumentAnalyzer: LLM-backed capabilities.
//   - LanguageDetector: Fills in missing record languages.
//   - RunLock: Prevents overlapping runs.
//   - MetricsRecorder: Exports stage counters.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
