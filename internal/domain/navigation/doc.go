/*
Package navigation tracks the check state of every browser tab.

Each tab moves IDLE -> CHECKING -> RESOLVED_*. A new navigation always
supersedes the previous one: Begin bumps the tab's generation and returns a
Ticket, and Resolve discards results whose ticket no longer matches. The
outstanding classifier call is not cancelled; its result is simply ignored.

A PHISHING result redirects the tab to the warning page unless the user
opened the tab's skip window, in which case a passive notice is issued. The
skip window belongs to the tab and outlives individual navigations until its
deadline passes.
*/
package navigation
