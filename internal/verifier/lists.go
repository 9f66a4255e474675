package verifier

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"guerrillamail.net": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"getnada.com":       {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
	"sharklasers.com":   {},
	"fakeinbox.com":     {},
	"mintemail.com":     {},
	"mohmal.com":        {},
	"emailondeck.com":   {},
	"spamgourmet.com":   {},
	"mailnesia.com":     {},
	"burnermail.io":     {},
}

var roleLocalParts = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"billing":       {},
	"contact":       {},
	"help":          {},
	"hello":         {},
	"hr":            {},
	"info":          {},
	"jobs":          {},
	"marketing":     {},
	"no-reply":      {},
	"noreply":       {},
	"office":        {},
	"postmaster":    {},
	"root":          {},
	"sales":         {},
	"security":      {},
	"support":       {},
	"team":          {},
	"webmaster":     {},
}

var freeProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"protonmail.com": {},
	"proton.me":      {},
	"gmx.com":        {},
	"mail.com":       {},
	"yandex.com":     {},
	"zoho.com":       {},
}

// popularDomains are typo-correction targets.
var popularDomains = []string{
	"gmail.com",
	"yahoo.com",
	"outlook.com",
	"hotmail.com",
	"icloud.com",
	"aol.com",
	"protonmail.com",
	"live.com",
	"msn.com",
	"comcast.net",
}
