package taxrate

import "github.com/shopspring/decimal"

// DefaultFallbackCountry jurisdicción de respaldo si la configuración no indica otra.
const DefaultFallbackCountry = "CH"

func rate(label, pct string, class Class) TaxRate {
	return TaxRate{Label: label, Rate: decimal.RequireFromString(pct), Class: class}
}

// BuiltinJurisdictions tasas vigentes integradas (CH/LI desde 2024).
// Un archivo de tasas configurado reemplaza países completos, no tasas sueltas.
func BuiltinJurisdictions() []Jurisdiction {
	swiss := []TaxRate{
		rate("Normalsatz", "8.1", ClassStandard),
		rate("Beherbergung", "3.8", ClassReduced),
		rate("reduzierter Satz", "2.6", ClassReduced),
		rate("befreit", "0", ClassZero),
	}
	return []Jurisdiction{
		{CountryCode: "CH", Currency: "CHF", VATLabel: "MWST", Rates: swiss},
		{CountryCode: "LI", Currency: "CHF", VATLabel: "MWST", Rates: swiss},
		{CountryCode: "DE", Currency: "EUR", VATLabel: "USt", Rates: []TaxRate{
			rate("Regelsteuersatz", "19", ClassStandard),
			rate("ermäßigt", "7", ClassReduced),
			rate("steuerfrei", "0", ClassZero),
		}},
		{CountryCode: "AT", Currency: "EUR", VATLabel: "USt", Rates: []TaxRate{
			rate("Normalsteuersatz", "20", ClassStandard),
			rate("ermäßigt", "13", ClassReduced),
			rate("ermäßigt", "10", ClassReduced),
			rate("steuerfrei", "0", ClassZero),
		}},
		{CountryCode: "FR", Currency: "EUR", VATLabel: "TVA", Rates: []TaxRate{
			rate("taux normal", "20", ClassStandard),
			rate("taux intermédiaire", "10", ClassReduced),
			rate("taux réduit", "5.5", ClassReduced),
			rate("taux particulier", "2.1", ClassReduced),
			rate("exonéré", "0", ClassZero),
		}},
		{CountryCode: "IT", Currency: "EUR", VATLabel: "IVA", Rates: []TaxRate{
			rate("aliquota ordinaria", "22", ClassStandard),
			rate("aliquota ridotta", "10", ClassReduced),
			rate("aliquota ridotta", "5", ClassReduced),
			rate("aliquota minima", "4", ClassReduced),
			rate("esente", "0", ClassZero),
		}},
		{CountryCode: "ES", Currency: "EUR", VATLabel: "IVA", Rates: []TaxRate{
			rate("tipo general", "21", ClassStandard),
			rate("tipo reducido", "10", ClassReduced),
			rate("tipo superreducido", "4", ClassReduced),
			rate("exento", "0", ClassZero),
		}},
		{CountryCode: "NL", Currency: "EUR", VATLabel: "BTW", Rates: []TaxRate{
			rate("algemeen tarief", "21", ClassStandard),
			rate("verlaagd tarief", "9", ClassReduced),
			rate("vrijgesteld", "0", ClassZero),
		}},
		{CountryCode: "BE", Currency: "EUR", VATLabel: "TVA/BTW", Rates: []TaxRate{
			rate("taux normal", "21", ClassStandard),
			rate("taux réduit", "12", ClassReduced),
			rate("taux réduit", "6", ClassReduced),
			rate("exonéré", "0", ClassZero),
		}},
		{CountryCode: "LU", Currency: "EUR", VATLabel: "TVA", Rates: []TaxRate{
			rate("taux normal", "17", ClassStandard),
			rate("taux intermédiaire", "14", ClassReduced),
			rate("taux réduit", "8", ClassReduced),
			rate("taux super-réduit", "3", ClassReduced),
			rate("exonéré", "0", ClassZero),
		}},
		{CountryCode: "GB", Currency: "GBP", VATLabel: "VAT", Rates: []TaxRate{
			rate("standard rate", "20", ClassStandard),
			rate("reduced rate", "5", ClassReduced),
			rate("zero rate", "0", ClassZero),
		}},
	}
}

// MergeJurisdictions reemplaza (o agrega) los países de overrides sobre base.
func MergeJurisdictions(base, overrides []Jurisdiction) []Jurisdiction {
	idx := make(map[string]int, len(base))
	out := make([]Jurisdiction, 0, len(base)+len(overrides))
	for _, j := range base {
		idx[normalize(j.CountryCode)] = len(out)
		out = append(out, j)
	}
	for _, j := range overrides {
		if i, ok := idx[normalize(j.CountryCode)]; ok {
			out[i] = j
			continue
		}
		idx[normalize(j.CountryCode)] = len(out)
		out = append(out, j)
	}
	return out
}
