package hosts

// DefaultRules is the alias table collected from the scraped sites.
func DefaultRules() []Rule {
	return []Rule{
		{"hglink.to", "streamwish.to"},
		{"swdyu.com", "streamwish.to"},
		{"cybervynx.com", "streamwish.to"},
		{"dumbalag.com", "streamwish.to"},
		{"callistanise.com", "streamwish.to"},
		{"mivalyo.com", "vidhidepro.com"},
		{"dinisglows.com", "vidhidepro.com"},
		{"dhtpre.com", "vidhidepro.com"},
		{"filemoon.link", "filemoon.sx"},
		{"filemoon.sx", "filemoon.to"},
		{"sblona.com", "watchsb.com"},
		{"lulu.st", "lulustream.com"},
		{"uqload.io", "uqload.com"},
		{"do7go.com", "dood.la"},
		{"dooood.com", "dood.la"},
		{"dood.so", "dood.la"},
		{"dood.ws", "dood.la"},
		{"dood.to", "dood.la"},
		{"embtaku.pro", "embtaku.com"},
	}
}

var defaultNormalizer = MustNew(DefaultRules())

// Default returns the normalizer for DefaultRules.
func Default() *Normalizer { return defaultNormalizer }
