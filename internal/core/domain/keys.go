package domain

import "fmt"

// Keys builds the agent's own bookkeeping keys, all sharing one prefix.
type Keys struct {
	Prefix string
}

func (k Keys) Connect() string    { return k.Prefix + "[connect,status]" }
func (k Keys) Version() string    { return k.Prefix + "[version]" }
func (k Keys) SectionLLD() string { return k.Prefix + ".section.lld" }
func (k Keys) QueryLLD() string   { return k.Prefix + ".query.lld" }
func (k Keys) CPUUser() string    { return k.Prefix + "[cpu,user]" }
func (k Keys) CPUSys() string     { return k.Prefix + "[cpu,sys]" }
func (k Keys) MemRSS() string     { return k.Prefix + "[mem,rss]" }

// Query returns the key for one field (status, ela, fetch) of a check.
func (k Keys) Query(section, key, field string) string {
	return fmt.Sprintf("%s[query,%s,%s,%s]", k.Prefix, section, key, field)
}

// SectionElapsed is the time spent running one section.
func (k Keys) SectionElapsed(section string) string {
	return fmt.Sprintf("%s[query,%s,,ela]", k.Prefix, section)
}

// CycleElapsed is the time spent running all due sections.
func (k Keys) CycleElapsed() string {
	return k.Prefix + "[query,,,ela]"
}
