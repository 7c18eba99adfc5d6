package lexicon

// Default returns a lexicon seeded with common English irregular forms.
func Default() *Lexicon {
	lex := New()
	for lemma, variants := range irregularVerbs {
		lex.AddGroup(Verb, lemma, variants)
	}
	for lemma, variants := range irregularNouns {
		lex.AddGroup(Noun, lemma, variants)
	}
	for lemma, variants := range irregularAdjectives {
		lex.AddGroup(Adj, lemma, variants)
	}
	return lex
}

var irregularVerbs = map[string][]string{
	"be":         {"was", "were", "been", "am", "is", "are", "being"},
	"have":       {"has", "had", "having"},
	"do":         {"does", "did", "done", "doing"},
	"go":         {"went", "gone", "goes"},
	"see":        {"saw", "seen", "sees"},
	"make":       {"made"},
	"take":       {"took", "taken"},
	"give":       {"gave", "given"},
	"come":       {"came"},
	"get":        {"got", "gotten"},
	"know":       {"knew", "known"},
	"think":      {"thought"},
	"tell":       {"told"},
	"say":        {"said", "says"},
	"find":       {"found"},
	"leave":      {"left", "leaves"},
	"live":       {"lives"},
	"pay":        {"paid"},
	"buy":        {"bought"},
	"bring":      {"brought"},
	"send":       {"sent"},
	"break":      {"broke", "broken"},
	"run":        {"ran"},
	"write":      {"wrote", "written"},
	"begin":      {"began", "begun"},
	"feel":       {"felt"},
	"keep":       {"kept"},
	"hold":       {"held"},
	"stand":      {"stood"},
	"understand": {"understood"},
	"meet":       {"met"},
	"lose":       {"lost"},
	"build":      {"built"},
	"spend":      {"spent"},
	"fall":       {"fell", "fallen"},
	"choose":     {"chose", "chosen"},
	"speak":      {"spoke", "spoken"},
	"eat":        {"ate", "eaten", "eating", "eats"},
	"drive":      {"drove", "driven"},
	"freeze":     {"froze", "frozen"},
	"burst":      {"bursts"},
	"hear":       {"heard"},
	"mean":       {"meant"},
	"teach":      {"taught"},
	"catch":      {"caught"},
	"fight":      {"fought"},
	"seek":       {"sought"},
	"sell":       {"sold"},
	"shut":       {"shuts"},
	"wear":       {"wore", "worn"},
	"tear":       {"tore", "torn"},
	"need":       {"needs", "needed", "needing"},
}

var irregularNouns = map[string][]string{
	"child":     {"children"},
	"man":       {"men"},
	"woman":     {"women"},
	"person":    {"people"},
	"foot":      {"feet"},
	"tooth":     {"teeth"},
	"mouse":     {"mice"},
	"goose":     {"geese"},
	"leaf":      {"leaves"},
	"life":      {"lives"},
	"knife":     {"knives"},
	"wife":      {"wives"},
	"half":      {"halves"},
	"shelf":     {"shelves"},
	"analysis":  {"analyses"},
	"crisis":    {"crises"},
	"criterion": {"criteria"},
	"series":    nil,
	"species":   nil,
	"news":      nil,
	"gas":       {"gases"},
	"bus":       {"buses"},
	"business":  {"businesses"},
	"address":   {"addresses"},
	"process":   {"processes"},
}

var irregularAdjectives = map[string][]string{
	"good":   {"better", "best"},
	"bad":    {"worse", "worst"},
	"far":    {"farther", "farthest"},
	"little": {"less", "least"},
}
