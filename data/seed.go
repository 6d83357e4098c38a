package data

import "github.com/MLotfy88/Medi-Tempo/entities"

// SeedMedications returns a fresh copy of the built-in catalog used on first
// run and whenever the persisted snapshot cannot be read.
func SeedMedications() []entities.Medication {
	return []entities.Medication{
		{
			ID:               "1",
			Name:             "Paracetamol 500mg",
			ActiveIngredient: "Acetaminophen",
			Price:            12.99,
			Category:         "Pain Relief",
			IsAvailable:      true,
			Description:      "A common pain reliever and fever reducer used for treating mild to moderate pain.",
			DosageInfo:       "Adults and children 12 years and over: Take 1-2 tablets every 4-6 hours as needed. Do not exceed 8 tablets in 24 hours.",
			SideEffects:      []string{"Nausea", "Stomach pain", "Headache", "Dizziness"},
			Storage:          "Store at room temperature away from moisture and heat.",
			Warnings: []string{
				"Do not use with other products containing paracetamol.",
				"Alcohol may increase the risk of liver damage.",
				"Consult a doctor if symptoms persist for more than 3 days.",
			},
			Alternatives: []entities.Alternative{
				{ID: "2", Name: "Ibuprofen 400mg", Price: 14.99},
				{ID: "5", Name: "Aspirin 325mg", Price: 10.99},
				{ID: "6", Name: "Naproxen 220mg", Price: 16.99},
			},
		},
		{
			ID:               "2",
			Name:             "Ibuprofen 400mg",
			ActiveIngredient: "Ibuprofen",
			Price:            15.5,
			Category:         "Anti-inflammatory",
			IsAvailable:      true,
			Description:      "A nonsteroidal anti-inflammatory drug used for treating pain, fever, and inflammation.",
			DosageInfo:       "Adults: Take 1 tablet every 4-6 hours while symptoms persist. Do not exceed 3 tablets in 24 hours.",
			SideEffects:      []string{"Stomach upset", "Heartburn", "Dizziness", "Mild headache"},
			Storage:          "Store at room temperature away from moisture and heat.",
			Warnings: []string{
				"Not recommended for use during the last trimester of pregnancy.",
				"May increase the risk of heart attack or stroke.",
				"Do not use if you have had an allergic reaction to aspirin.",
			},
			Alternatives: []entities.Alternative{
				{ID: "1", Name: "Paracetamol 500mg", Price: 12.99},
				{ID: "5", Name: "Aspirin 325mg", Price: 10.99},
				{ID: "6", Name: "Naproxen 220mg", Price: 16.99},
			},
		},
		{
			ID:               "3",
			Name:             "Amoxicillin 250mg",
			ActiveIngredient: "Amoxicillin",
			Price:            24.75,
			Category:         "Antibiotic",
			IsAvailable:      false,
			Description:      "A penicillin antibiotic that fights bacteria in the body.",
			DosageInfo:       "Adults: 250-500mg every 8 hours or 500-875mg every 12 hours, depending on the type and severity of infection.",
			SideEffects:      []string{"Diarrhea", "Stomach upset", "Vomiting", "Rash"},
			Storage:          "Store at room temperature away from moisture, heat, and light.",
			Warnings: []string{
				"May cause allergic reactions in patients with penicillin allergy.",
				"Complete the full course of treatment even if you feel better.",
				"May reduce the effectiveness of birth control pills.",
			},
			Alternatives: []entities.Alternative{
				{ID: "7", Name: "Azithromycin 250mg", Price: 28.99},
				{ID: "8", Name: "Cephalexin 500mg", Price: 22.5},
			},
		},
		{
			ID:               "4",
			Name:             "Loratadine 10mg",
			ActiveIngredient: "Loratadine",
			Price:            18.25,
			Category:         "Antihistamine",
			IsAvailable:      true,
			Description:      "An antihistamine that reduces the effects of natural chemical histamine in the body.",
			DosageInfo:       "Adults and children 6 years and older: Take 1 tablet daily.",
			SideEffects:      []string{"Headache", "Drowsiness", "Dry mouth", "Fatigue"},
			Storage:          "Store at room temperature away from moisture and heat.",
			Warnings: []string{
				"May cause drowsiness in some patients.",
				"Avoid alcohol consumption while taking this medication.",
				"Consult a doctor if you have liver or kidney disease.",
			},
			Alternatives: []entities.Alternative{
				{ID: "9", Name: "Cetirizine 10mg", Price: 16.75},
				{ID: "10", Name: "Fexofenadine 180mg", Price: 21.99},
			},
		},
		{
			ID:               "5",
			Name:             "Omeprazole 20mg",
			ActiveIngredient: "Omeprazole",
			Price:            22.99,
			Category:         "Antacid",
			IsAvailable:      true,
			Description:      "A proton pump inhibitor that decreases the amount of acid produced in the stomach.",
			DosageInfo:       "Adults: Take 1 capsule daily before eating, preferably in the morning.",
			SideEffects:      []string{"Headache", "Abdominal pain", "Nausea", "Diarrhea"},
			Storage:          "Store at room temperature away from moisture, heat, and light.",
			Warnings: []string{
				"Long-term use may increase the risk of bone fractures.",
				"May interact with certain medications like clopidogrel.",
				"Consult a doctor if symptoms persist for more than 14 days.",
			},
			Alternatives: []entities.Alternative{
				{ID: "11", Name: "Esomeprazole 40mg", Price: 26.5},
				{ID: "12", Name: "Pantoprazole 40mg", Price: 20.75},
			},
		},
		{
			ID:               "7",
			Name:             "Azithromycin 250mg",
			ActiveIngredient: "Azithromycin",
			Price:            28.99,
			Category:         "Antibiotic",
			IsAvailable:      true,
			Description:      "A macrolide antibiotic used to treat respiratory, skin and ear infections.",
			DosageInfo:       "Adults: 500mg on day 1, then 250mg once daily on days 2 to 5.",
			SideEffects:      []string{"Diarrhea", "Nausea", "Abdominal pain", "Vomiting"},
			Storage:          "Store at room temperature away from moisture and heat.",
			Warnings: []string{
				"May cause an abnormal heart rhythm in susceptible patients.",
				"Complete the full course of treatment even if you feel better.",
			},
			Alternatives: []entities.Alternative{
				{ID: "3", Name: "Amoxicillin 250mg", Price: 24.75},
				{ID: "8", Name: "Cephalexin 500mg", Price: 22.5},
			},
		},
		{
			ID:               "9",
			Name:             "Cetirizine 10mg",
			ActiveIngredient: "Cetirizine",
			Price:            16.75,
			Category:         "Antihistamine",
			IsAvailable:      true,
			Description:      "An antihistamine that relieves sneezing, itching and runny nose caused by allergies.",
			DosageInfo:       "Adults and children 6 years and older: Take 1 tablet daily.",
			SideEffects:      []string{"Drowsiness", "Dry mouth", "Fatigue"},
			Storage:          "Store at room temperature away from moisture and heat.",
			Warnings: []string{
				"May cause drowsiness, use caution when driving.",
				"Avoid alcohol consumption while taking this medication.",
			},
			Alternatives: []entities.Alternative{
				{ID: "4", Name: "Loratadine 10mg", Price: 18.25},
				{ID: "10", Name: "Fexofenadine 180mg", Price: 21.99},
			},
		},
	}
}
