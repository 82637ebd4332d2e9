// Package expenses analyzes the accounting-balance export: general-ledger
// lines are classified into fixed business segments and summed per month, with
// month-over-month moves flagged.
package expenses

import "strings"

// Segment owns the curated ledger-line labels that roll up into it. Order of
// declaration is the report row order and the tie-break for classification.
type Segment struct {
	Name   string
	Labels []string
}

// SegmentInterest is the out-of-list override target for loan interest lines.
const SegmentInterest = "INTERETS / FINANCE"

// interestOverrideLabel is also present in the "Autres" keyword list; the
// override is checked strictly before the segment scan and wins.
const interestOverrideLabel = "INTERETS DES EMPRUNTS ET DETTES"

// Segments is the fixed, ordered segment table. It is static process-wide
// configuration, never derived from data.
var Segments = []Segment{
	{Name: "Nettoyage", Labels: []string{
		"GARDIENNAGE ET MENAGE", "NETTOYAGE FIN DE CHANTIER", "DERATISATIONS / DESINSECTISATION",
		"ACHAT HYGYENE SDHE", "SERVICES DE NETTOYAGE", "BLANCHISSERIE",
	}},
	{Name: "Des employés", Labels: []string{
		"APPOINTEMENTS ET SALAIRES", "INDEMNITES ET AVANTAGES DIVERS", "COTISATIONS DE SECURITE SOCIALE",
		"COTISATIONS PREVOYANCE + SANTE", "PROVISION DES CP+CHARGES INITIAL", "PROVISION DES CP+CHARGES FINAL",
		"GRATIFICATIONS DE STAGE", "REMPLACEMENTS", "INCITATIONS", "ASSURANCES ACCIDENTS DU TRAVAIL",
	}},
	{Name: "Leasing", Labels: []string{
		"LOYER URBAN DEVELOPPEURS V", "LOYER URBAN DEVELOPPEURS - CHARGES LOCATIVES",
		"REDEVANCES DE CREDIT BAIL MATERIEL PS FITNESS", "LOYER MATERIEL VIA FPK MAROC",
		"LOCATION DISTRIBUTEUR KIT STORE", "LOCATION ESPACE PUBLICITAIRES",
	}},
	{Name: "Réparations et entretien", Labels: []string{
		"ENTRET ET REPAR DES BIENS IMMOBILIERS", "MAINTENANCE IMAFLUIDE", "MAINTENANCE INCENDIE (par semestre)",
		"MAINTENANCE TECHNOGYM", "MAINTENANCE HYDROMASSAGE",
	}},
	{Name: "Publicité et relations publiques", Labels: []string{
		"DESIGN ET CREATIVITE", "AFFICHES pub", "FRAIS INAUGURATION / ANNIVERSAIRE",
		"RECEPTIONS", "DISTRIBUTION SUPPORTS PUBLICITAIRES", "EVENEMENTS", "CLIENT MYSTERE",
		"VOYAGES ET DEPLACEMENTS", "FRAIS POSTAUX dhl", "TAXES ECRAN DEVANTURE (1an)",
	}},
	{Name: "Services professionnels", Labels: []string{
		"HONORAIRES COMPTA (moore)", "HONORAIRES SOCIAL (moore)", "HONORAIRES DIVERS",
		"HONO PRESTATION FPK MAROC", "CONSEILS", "CONVENTION MEDECIN (1an)",
		"SOUS TRAITANCE CENTRE D APPEL", "ACHATS PRESTATION admin / RH",
	}},
	{Name: "Achats et fournitures", Labels: []string{
		"ACHATS DE MARCHANDISES revente", "ACHAT ALIZEE", "ACHAT BOGOODS", "ACHAT GRAPOS",
		"ACHATS DE FOURNITURES DE BUREAU", "ACHAT TENUES",
		"ACHATS DE PETITS EQUIPEMENTS FOURNITURES", "PRODUITS DE NETTOYAGE",
		"PRODUITS DE TRAITEMENT DES PISCINES", "EQUIPEMENTS D'ENTRAINEMENT EN PETITS GROUPES",
		"PAPETERIE", "PRESSE", "MATERIEL D'HABILLEMENT",
	}},
	{Name: "Fournitures", Labels: []string{
		"ACHATS LYDEC (EAU+ELECTRICITE)", "ELECTRICITE", "GAZ", "WATER", "DIVERS FOURNITURES",
	}},
	{Name: "Téléphones/ Communication", Labels: []string{
		"FRAIS DE TELECOMMUNICATION (orange)", "FRAIS DE TELECOMMUNICATION (Maroc Télécom)", "Téléphone", "Net / wifi",
	}},
	{Name: "Entraînement", Labels: []string{
		"COURS COLLECTIFS", "COÛTS DES COURS/PROGRAMMES", "RÉGIMES ALIMENTAIRES ET HÉBERGEMENT", "DIVERS ENTRAÎNEMENT",
		"ABONT FP CLOUD FITNESS PARK France", "ABONT QR CODE FITNESS PARK France",
		"ABONT MG INSTORE MEDIA (1an)", "ABONT TSHOKO (1an)", "ABONT COMBO (1an)",
		"ABONT CENAREO (1an)", "RESAMANIA HEBERGEMENT SERVEUR", "RESAMANIA SMS", "ABONT HYROX 365",
		"ABONT LICENCE PLANET FITNESS",
	}},
	{Name: "Autres", Labels: []string{
		"SERVICES BANCAIRES", "FRAIS ET COMMISSIONS SUR SERVICES BANCAI", "FRAIS COMMISSION NAPS",
		"FRAIS COMMISSIONS CMI", "INSURANCE PREMIUMS", "TRANSPORT ET COURRIER", "SÉCURITÉ",
		"DROITS MUSICAUX", "TAXES ET REDEVANCES", "SANCTIONS ADMINISTRATIVES", "DÉSÉQUILIBRES",
		"INTERETS DES EMPRUNTS ET DETTES", "REDEVANCES FITNESS PARK France 3%", "DROITS D'ENREGISTREMENT ET DE TIMBRE",
		"ASSURANCE RC CLUB SPORTIF (500 adhérents)", "ASSURANCE RC CLUB SPORTIF provision actif réel",
		"ASSURANCE MULTIRISQUE", "CADEAUX SALARIE ET CLIENT", "CHEQUES CADEAUX POUR CHALLENGES",
	}},
}

// SegmentOrder lists segment names in declaration order.
func SegmentOrder() []string {
	names := make([]string, len(Segments))
	for i, s := range Segments {
		names[i] = s.Name
	}
	return names
}

// normalized per-segment label sets, built once.
var segmentSets = func() []map[string]struct{} {
	sets := make([]map[string]struct{}, len(Segments))
	for i, seg := range Segments {
		sets[i] = make(map[string]struct{}, len(seg.Labels))
		for _, l := range seg.Labels {
			sets[i][canonLabel(l)] = struct{}{}
		}
	}
	return sets
}()

// allLabels is the union of every segment's normalized labels, used for
// label-column autodetection.
var allLabels = func() map[string]struct{} {
	all := make(map[string]struct{})
	for _, set := range segmentSets {
		for l := range set {
			all[l] = struct{}{}
		}
	}
	return all
}()

func canonLabel(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Classify maps a ledger-line label to its segment. Membership is exact on
// the trimmed-uppercased label, never substring: expense lines must not
// cross-match unrelated segments that share a word. Unclassified labels are
// dropped from the segmented report entirely; the TBO classifier chose the
// opposite fallback (a catch-all bucket) and the difference is deliberate.
func Classify(label string) (string, bool) {
	canon := canonLabel(label)
	if canon == interestOverrideLabel {
		return SegmentInterest, true
	}
	for i := range Segments {
		if _, ok := segmentSets[i][canon]; ok {
			return Segments[i].Name, true
		}
	}
	return "", false
}

// KnownLabel reports whether a cell value is one of the curated ledger lines.
func KnownLabel(cell string) bool {
	_, ok := allLabels[canonLabel(cell)]
	return ok
}
