// Package bus implements the shared snoop bus that fans a processor's
// coherence request out to every other processor's coherence controller.
// ════════════════════════════════════════════════════════════════════
// It knows nothing about coherence states or cache contents - only how to
// broadcast a protocol.BusReqType to every registered listener except the
// one that issued it, how to stand in for main memory with a Data response
// to the issuer when no peer answers a BusRd or BusWr, and how many
// requests have gone by when asked to report.
package bus
