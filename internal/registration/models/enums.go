package models

// FormType is the discriminant naming the paper form that was submitted.
type FormType string

const (
	FormTypeAD01  FormType = "AD01"
	FormTypeB07   FormType = "B07"
	FormTypeK432  FormType = "K432"
	FormTypeD243  FormType = "D243"
	FormTypeOther FormType = "OTHER"
)

// FormTypes lists accepted form types in declaration order.
var FormTypes = []FormType{FormTypeAD01, FormTypeB07, FormTypeK432, FormTypeD243, FormTypeOther}

// PenColour records which pen colour was not used on the form.
type PenColour string

const (
	PenColourBlue  PenColour = "BLUE"
	PenColourBlack PenColour = "BLACK"
	PenColourRed   PenColour = "RED"
	PenColourGreen PenColour = "GREEN"
)

var PenColours = []PenColour{PenColourBlue, PenColourBlack, PenColourRed, PenColourGreen}

// GuidanceRead is the tri-state guidance acknowledgment.
type GuidanceRead string

const (
	GuidanceReadYes         GuidanceRead = "YES"
	GuidanceReadLookedAtNow GuidanceRead = "LOOKED_AT_NOW"
	GuidanceReadNo          GuidanceRead = "NO"
)

var GuidanceReads = []GuidanceRead{GuidanceReadYes, GuidanceReadLookedAtNow, GuidanceReadNo}

// ReceiptPreference is the discriminant for receipt contact fields.
type ReceiptPreference string

const (
	ReceiptPreferenceEmail ReceiptPreference = "email"
	ReceiptPreferencePhone ReceiptPreference = "phone"
	ReceiptPreferenceNone  ReceiptPreference = "none"
)

var ReceiptPreferences = []ReceiptPreference{ReceiptPreferenceEmail, ReceiptPreferencePhone, ReceiptPreferenceNone}
