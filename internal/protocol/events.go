package protocol

type Event map[string]interface{}

// Event types carried in EventsMsg.
const (
	EventActionResult = "ACTION_RESULT"
	EventPathResult   = "PATH_RESULT"
	EventPathDone     = "PATH_DONE"
	EventPathFailed   = "PATH_FAILED"
	EventStatus       = "STATUS"
)

func ActionResult(tick uint64, ref string, ok bool, code string, message string) Event {
	if !IsKnownCode(code) {
		code = ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := Event{
		"t":    tick,
		"type": EventActionResult,
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
