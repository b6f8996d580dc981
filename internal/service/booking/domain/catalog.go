package domain

// ServiceGender 服务适用人群
type ServiceGender string

const (
	ServiceForMale   ServiceGender = "male"
	ServiceForFemale ServiceGender = "female"
	ServiceForAll    ServiceGender = "common"
)

// MedicalService 是可预约的医疗服务目录项
type MedicalService struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Price       int64         `json:"price"`
	Gender      ServiceGender `json:"gender"`
	Description string        `json:"description"`
	IsActive    bool          `json:"isActive"`
}

// Item 转换为预约明细
func (s MedicalService) Item() ServiceItem {
	return ServiceItem{ID: s.ID, Name: s.Name, Price: s.Price}
}

// DefaultMedicalServices 目录为空时的初始数据
func DefaultMedicalServices() []MedicalService {
	return []MedicalService{
		{ID: "general-consultation", Name: "General Consultation", Price: 500, Gender: ServiceForAll, Description: "Comprehensive health check-up with a general physician", IsActive: true},
		{ID: "blood-test", Name: "Blood Test Panel", Price: 300, Gender: ServiceForAll, Description: "Complete blood count and basic metabolic panel", IsActive: true},
		{ID: "x-ray", Name: "X-Ray Imaging", Price: 800, Gender: ServiceForAll, Description: "Digital X-ray imaging for diagnostic purposes", IsActive: true},
		{ID: "ecg", Name: "ECG/EKG Test", Price: 400, Gender: ServiceForAll, Description: "Electrocardiogram for heart rhythm analysis", IsActive: true},
		{ID: "ultrasound", Name: "Ultrasound Scan", Price: 1000, Gender: ServiceForAll, Description: "Non-invasive ultrasound imaging", IsActive: true},

		{ID: "mammography", Name: "Mammography Screening", Price: 1200, Gender: ServiceForFemale, Description: "Breast cancer screening with digital mammography", IsActive: true},
		{ID: "gynecology", Name: "Gynecology Consultation", Price: 700, Gender: ServiceForFemale, Description: "Comprehensive gynecological examination", IsActive: true},
		{ID: "pap-smear", Name: "Pap Smear Test", Price: 550, Gender: ServiceForFemale, Description: "Cervical cancer screening test", IsActive: true},
		{ID: "bone-density-female", Name: "Bone Density Scan", Price: 900, Gender: ServiceForFemale, Description: "DEXA scan for osteoporosis screening", IsActive: true},

		{ID: "prostate-exam", Name: "Prostate Examination", Price: 600, Gender: ServiceForMale, Description: "Prostate health check with PSA test", IsActive: true},
		{ID: "testosterone-test", Name: "Testosterone Level Test", Price: 450, Gender: ServiceForMale, Description: "Hormone level assessment", IsActive: true},
		{ID: "cardiac-stress", Name: "Cardiac Stress Test", Price: 1100, Gender: ServiceForMale, Description: "Treadmill stress test for heart health", IsActive: true},
	}
}
