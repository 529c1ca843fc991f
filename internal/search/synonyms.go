package search

// Nicknames maps a given name to its common short forms. The expander
// makes the relation symmetric: a nickname expands to the full name and to
// the other nicknames of the same name.
var Nicknames = map[string][]string{
	"william":     {"will", "bill", "billy", "liam"},
	"elizabeth":   {"liz", "beth", "betty", "eliza", "lizzie"},
	"robert":      {"rob", "bob", "bobby", "robbie"},
	"michael":     {"mike", "mikey", "mick"},
	"jonathan":    {"jon", "john", "jonny"},
	"jennifer":    {"jen", "jenny"},
	"richard":     {"rick", "rich", "dick", "ricky"},
	"charles":     {"charlie", "chuck", "chas"},
	"christopher": {"chris", "topher"},
	"daniel":      {"dan", "danny"},
	"david":       {"dave", "davey"},
	"james":       {"jim", "jimmy", "jamie"},
	"joseph":      {"joe", "joey"},
	"matthew":     {"matt", "matty"},
	"nicholas":    {"nick", "nicky"},
	"thomas":      {"tom", "tommy"},
	"anthony":     {"tony"},
	"andrew":      {"andy", "drew"},
	"katherine":   {"kate", "katie", "kathy", "kat"},
	"margaret":    {"maggie", "meg", "peggy"},
	"patricia":    {"pat", "patty", "trish"},
	"susan":       {"sue", "suzy"},
	"timothy":     {"tim", "timmy"},
}

// TitleSynonyms maps a position word to single-word alternatives found in
// job titles. Multi-word titles are covered by their words: "vp" accepts
// "vice" or "president" in the same query slot.
var TitleSynonyms = map[string][]string{
	"engineer":   {"developer", "swe", "programmer", "coder"},
	"developer":  {"engineer", "programmer", "swe"},
	"swe":        {"engineer", "developer"},
	"programmer": {"engineer", "developer"},
	"dev":        {"developer", "engineer"},
	"manager":    {"mgr", "lead", "director"},
	"mgr":        {"manager"},
	"pm":         {"product", "manager"},
	"vp":         {"vice", "president"},
	"ceo":        {"chief", "executive"},
	"cto":        {"chief", "technology"},
	"cfo":        {"chief", "financial"},
	"coo":        {"chief", "operating"},
	"ml":         {"machine", "learning", "ai"},
	"ai":         {"ml"},
	"scientist":  {"analyst", "analytics"},
	"sr":         {"senior"},
	"senior":     {"sr"},
	"jr":         {"junior"},
	"junior":     {"jr"},
	"eng":        {"engineer", "engineering"},
	"designer":   {"design"},
	"recruiter":  {"recruiting", "talent"},
}
