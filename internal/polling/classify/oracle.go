package classify

import (
	"regexp"
)

// Oracle error numbers that leave the session unusable.
const (
	oraNotLoggedOn       = 1012  // ORA-01012
	oraSessionKilled     = 28    // ORA-00028
	oraEndOfFile         = 3113  // ORA-03113
	oraNotConnected      = 3114  // ORA-03114
	oraConnectionLost    = 3135  // ORA-03135
	oraASMRequiresSysdba = 15000 // ORA-15000
)

var oraCode = regexp.MustCompile(`ORA-\d+`)

func init() {
	Register(Adapter{
		Kind:    "oracle",
		Extract: extractOracle,
		FatalCodes: []int{
			oraSessionKilled,
			oraNotLoggedOn,
			oraEndOfFile,
			oraNotConnected,
			oraConnectionLost,
		},
		PrivilegedCodes: []int{oraASMRequiresSysdba},
	})
}

// go-ora reports server errors as "ORA-nnnnn: message".
func extractOracle(err error) (string, string, bool) {
	msg := err.Error()
	if code := oraCode.FindString(msg); code != "" {
		return code, msg, true
	}
	if connectionLost(err) {
		return "ORA-03113", msg, true
	}
	return "", "", false
}
