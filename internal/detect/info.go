package detect

// MaterialInfo is reference material shown next to a detection: what the
// resin is and how to dispose of it.
type MaterialInfo struct {
	Material    Material `json:"material"`
	ResinCode   int      `json:"resin_code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Recyclable  bool     `json:"recyclable"`
	Color       string   `json:"color"`
	Uses        []string `json:"uses"`
	Tips        []string `json:"tips"`
}

var materialInfo = map[Material]MaterialInfo{
	PET: {
		Name:        "Polyethylene Terephthalate",
		Description: "Clear, strong and lightweight plastic commonly used for beverage bottles.",
		Recyclable:  true,
		Uses:        []string{"Water bottles", "Soft drink bottles", "Food containers", "Polyester fibers"},
		Tips: []string{
			"Rinse containers before recycling",
			"Remove caps and labels if possible",
			"Flatten to save space in the recycling bin",
		},
	},
	HDPE: {
		Name:        "High-Density Polyethylene",
		Description: "Stiff, strong plastic resistant to many solvents with a good moisture barrier.",
		Recyclable:  true,
		Uses:        []string{"Milk jugs", "Detergent bottles", "Toys", "Plastic lumber"},
		Tips: []string{
			"Rinse thoroughly before recycling",
			"Remove paper labels when possible",
			"Keep caps on for better processing",
		},
	},
	PVC: {
		Name:        "Polyvinyl Chloride",
		Description: "Versatile plastic for rigid and flexible applications; contains chlorine.",
		Recyclable:  false,
		Uses:        []string{"Pipes", "Shower curtains", "Window frames", "Medical equipment"},
		Tips: []string{
			"Never burn it; combustion releases toxic chemicals",
			"Check with specialized recycling facilities",
			"Keep separate from other recyclables",
		},
	},
	LDPE: {
		Name:        "Low-Density Polyethylene",
		Description: "Flexible, tough plastic mostly found as films and bags.",
		Recyclable:  true,
		Uses:        []string{"Shopping bags", "Bread bags", "Squeeze bottles", "Cling film"},
		Tips: []string{
			"Return bags and films to store drop-off points",
			"Keep films clean and dry",
			"Do not put plastic bags in curbside bins unless accepted",
		},
	},
	PP: {
		Name:        "Polypropylene",
		Description: "Heat resistant, durable plastic used for food containers and caps.",
		Recyclable:  true,
		Uses:        []string{"Yogurt cups", "Bottle caps", "Straws", "Food containers"},
		Tips: []string{
			"Rinse off food residue",
			"Check whether your local program accepts it",
			"Reuse containers where possible",
		},
	},
	PS: {
		Name:        "Polystyrene",
		Description: "Rigid or foamed plastic; light and cheap but hard to recycle.",
		Recyclable:  false,
		Uses:        []string{"Disposable cups", "Foam packaging", "Takeout containers", "Cutlery"},
		Tips: []string{
			"Avoid heating food in it",
			"Look for dedicated foam drop-off sites",
			"Prefer reusable alternatives",
		},
	},
	Others: {
		Name:        "Other plastics",
		Description: "Mixed or layered plastics such as polycarbonate, acrylic and bioplastics.",
		Recyclable:  false,
		Uses:        []string{"Baby bottles", "Electronics housings", "Multi-layer packaging", "Eyewear"},
		Tips: []string{
			"Check the specific resin before disposal",
			"Treat as general waste unless a program accepts it",
		},
	},
	Unknown: {
		Name:        "Unidentified plastic",
		Description: "The material could not be identified from the label.",
		Recyclable:  false,
		Uses:        []string{},
		Tips: []string{
			"Look for a resin identification code on the item",
		},
	},
}

// InfoFor returns reference information for a material. Out-of-range
// values are described as Unknown.
func InfoFor(m Material) MaterialInfo {
	info, ok := materialInfo[m]
	if !ok {
		m = Unknown
		info = materialInfo[Unknown]
	}
	info.Material = m
	info.ResinCode = m.ResinCode()
	info.Color = HexOf(m)
	return info
}
