package visionnext

import (
	"strings"
	"unicode"
)

type branchMapping struct {
	keyword string
	branch  string
}

// branchMappings maps a keyword found in the order's customer name to the
// portal branch entry to activate. Matching is case-insensitive with Turkish
// casing rules; first match in declaration order wins.
var branchMappings = []branchMapping{
	{"DALAY", "CASTROL BATMAN DALAY PETROL"},
	{"BİLMAKSAN", "CASTROL TRAKYA BİLMAKSAN"},
	{"HNR", "CASTROL DİYARBAKIR HNR"},
	{"ALGÜNLER", "CASTROL MARDİN ALGÜNLER"},
	{"BİLGE", "CASTROL ÇORUM BİLGE OTOMOTİV"},
	{"YILMAZ PETROL", "CASTROL KONYA YILMAZ PETROL"},
	{"MAY AKARYAKIT", "CASTROL MERSİN MAY AKARYAKIT"},
	{"AKILLAR", "CASTROL ANTALYA AKILLAR"},
	{"İDUĞ", "CASTROL İZMİR İDUĞ"},
	{"VİS ENERJİ", "CASTROL İSTANBUL VİS ENERJİ"},
	{"YD DENİZ", "CASTROL ANKARA YD DENİZ"},
	{"YAĞPET", "CASTROL BURSA YAĞPET"},
	{"ÖMÜR", "CASTROL DENİZLİ ÖMÜR"},
	{"POLAT GIDA", "CASTROL ELAZIĞ POLAT GIDA"},
	{"CİNDİLLİ", "CASTROL ERZURUM CİNDİLLİ"},
	{"ELBEYLİ", "CASTROL GAZİANTEP ELBEYLİ PETROL"},
	{"ÖZTOPRAK", "CASTROL HATAY VEDİ ÖZTOPRAK"},
	{"KARABULUT", "CASTROL KAYSERİ KARABULUT"},
	{"ŞİRİNAT", "CASTROL SAKARYA ŞİRİNAT"},
	{"TUNALAR", "CASTROL SAMSUN TUNALAR"},
	{"SEFER", "CASTROL TRABZON SEFER TİC."},
	{"TEKİN", "CASTROL VAN TEKİN TİC."},
	{"ÖCALLAR", "CASTROL ZONGULDAK ÖCALLAR"},
}

// ResolveBranch maps the order's customer name to a portal branch by keyword
// containment. Unmapped names fall back to the configured default branch so
// customer selection never raises on its own.
func ResolveBranch(customerName, defaultBranch string) (branch string, matched bool) {
	upper := turkishUpper(customerName)

	for _, m := range branchMappings {
		if strings.Contains(upper, turkishUpper(m.keyword)) {
			return m.branch, true
		}
	}

	return defaultBranch, false
}

func turkishUpper(s string) string {
	return strings.ToUpperSpecial(unicode.TurkishCase, s)
}
