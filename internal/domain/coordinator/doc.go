/*
Package coordinator is the facade of the detection layer.

Every check goes through Evaluate, which short-circuits in a fixed order:

 1. protection disabled: DISABLED
 2. URL not checkable: ERROR
 3. host allow-listed (static, user or session grant): SAFE
 4. fresh cached decision
 5. classifier call, shared with any concurrent caller for the same URL

Hover checks additionally set ShowBubble for PHISHING results whose score
reaches the hover threshold.

HandleNavigation drives the per-tab state machine for completed page loads
and pushes render-layer messages through a Notifier. Its checks run in the
background on a context owned by the Coordinator; Close cancels them.

All state (cache, in-flight calls, allow-list grants, tab sessions) belongs
to one Coordinator, so tests build isolated instances.
*/
package coordinator
