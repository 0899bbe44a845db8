package schema

import (
	"fmt"
	"time"
)

const (
	AdminRole  = "admin"
	ClientRole = "client"

	StatusDraft = "draft"
	StatusSent  = "sent"

	MorningShift = "morning"
	EveningShift = "evening"
)

func CheckValidRole(role string) error {
	if role != AdminRole && role != ClientRole {
		return fmt.Errorf("invalid role '%v', must be '%v' or '%v'", role, AdminRole, ClientRole)
	}
	return nil
}

func CheckValidStatus(status string) error {
	if status != StatusDraft && status != StatusSent {
		return fmt.Errorf("invalid status '%v', must be '%v' or '%v'", status, StatusDraft, StatusSent)
	}
	return nil
}

func CheckValidShift(shift string) error {
	if shift != MorningShift && shift != EveningShift {
		return fmt.Errorf("invalid shift '%v', must be '%v' or '%v'", shift, MorningShift, EveningShift)
	}
	return nil
}

type User struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`

	TelegramId *int64 `gorm:"unique"`
	Username   string `gorm:"size:100"`

	Role string `gorm:"size:50;not null"`

	// Single use code issued during onboarding, cleared once redeemed.
	AccessCode *string `gorm:"size:100"`

	Password []byte

	CreatedAt time.Time

	Client *Client
}

type Client struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`

	UserId int64 `gorm:"unique;not null"`
	User   *User

	FullName     string `gorm:"size:255;not null"`
	Organization string `gorm:"size:255;not null"`
	ContactInfo  string `gorm:"size:255"`

	Objects []ClientObject `gorm:"foreignKey:ClientId"`
}

type Object struct {
	Id   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:255;not null"`

	Reports []Report `gorm:"foreignKey:ObjectId"`
}

type ClientObject struct {
	ClientId int64 `gorm:"primaryKey"`
	ObjectId int64 `gorm:"primaryKey"`

	Client *Client `gorm:"foreignKey:ClientId"`
	Object *Object `gorm:"foreignKey:ObjectId"`
}

func (ClientObject) TableName() string {
	return "client_objects"
}

type Itr struct {
	Id       int64  `gorm:"primaryKey;autoIncrement"`
	FullName string `gorm:"size:255;not null"`
}

func (Itr) TableName() string {
	return "itr"
}

type Worker struct {
	Id       int64  `gorm:"primaryKey;autoIncrement"`
	FullName string `gorm:"size:255;not null"`
	Position string `gorm:"size:255;not null"`
}

type Equipment struct {
	Id   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:255;not null"`
}

func (Equipment) TableName() string {
	return "equipment"
}

type Report struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`

	ObjectId int64 `gorm:"not null"`
	Object   *Object

	Date time.Time `gorm:"index"`

	Shift        string  `gorm:"size:50;not null"`
	WorkCategory string  `gorm:"size:100;not null"`
	WorkSubtype  *string `gorm:"size:100"`

	Comments *string

	Status string `gorm:"size:50;not null;default:'draft'"`

	SentAt      *time.Time
	RecipientId *int64
	Recipient   *User `gorm:"foreignKey:RecipientId"`

	Crew      []ReportItr       `gorm:"foreignKey:ReportId"`
	Workers   []ReportWorker    `gorm:"foreignKey:ReportId"`
	Equipment []ReportEquipment `gorm:"foreignKey:ReportId"`
	Photos    []ReportPhoto     `gorm:"foreignKey:ReportId"`
}

type ReportItr struct {
	ReportId int64 `gorm:"primaryKey"`
	ItrId    int64 `gorm:"primaryKey"`

	Itr *Itr `gorm:"foreignKey:ItrId"`
}

func (ReportItr) TableName() string {
	return "report_itr"
}

type ReportWorker struct {
	ReportId int64 `gorm:"primaryKey"`
	WorkerId int64 `gorm:"primaryKey"`

	Worker *Worker `gorm:"foreignKey:WorkerId"`
}

func (ReportWorker) TableName() string {
	return "report_workers"
}

type ReportEquipment struct {
	ReportId    int64 `gorm:"primaryKey"`
	EquipmentId int64 `gorm:"primaryKey"`
	Quantity    int   `gorm:"not null;default:1"`

	Equipment *Equipment `gorm:"foreignKey:EquipmentId"`
}

func (ReportEquipment) TableName() string {
	return "report_equipment"
}

type ReportPhoto struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`

	ReportId int64 `gorm:"not null;index"`

	FilePath    string `gorm:"size:255;not null"`
	Description *string
}

func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Client{}, &Object{}, &ClientObject{},
		&Itr{}, &Worker{}, &Equipment{},
		&Report{}, &ReportItr{}, &ReportWorker{}, &ReportEquipment{}, &ReportPhoto{},
	}
}
