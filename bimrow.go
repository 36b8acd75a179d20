package polygenic

// Map columns in the BIM file to their positions
const (
	Chromosome int = iota
	VariantID
	Morgans
	Coordinate
	Allele1
	Allele2
)

// BIMRow is one entry of the variant map. Genotype dosages count Allele1.
type BIMRow struct {
	Chromosome   string
	Coordinate   uint32  // Labeled "position" by most applications
	VariantID    string  // E.g., RSID
	Allele1      string  // Can contain > 1 character
	Allele2      string  // Can contain > 1 character
	CentiMorgans float64 // Genetic position; 0 when the map carries none
}
