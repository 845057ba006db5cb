package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var roles = []domain.Role{
	domain.RoleAdmin,
	domain.RoleOperator,
	domain.RoleViewer,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		username += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
	}

	return user, nil
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rand.Intn(len(letters))]
	}
	return string(randomPassword)
}

var lowercaseLetters = []rune("abcdefghijklmnopqrstuvwxyz")

func GenerateRandomID(letterLength int, digitLength int) string {
	randomID := make([]rune, letterLength+digitLength)
	for i := range randomID {
		if i < letterLength {
			randomID[i] = lowercaseLetters[rand.Intn(len(lowercaseLetters))]
		} else {
			randomID[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(randomID)
}

// CloudSim 演示环境中的虚拟机规格
var mipsChoices = []float64{1000, 1500, 2000, 2300, 2500, 3000}

// GenerateRandomCluster 生成 2~10 个 worker 的随机集群
func GenerateRandomCluster() *domain.Cluster {
	cluster := &domain.Cluster{
		Name:        "cluster-" + GenerateRandomID(3, 3),
		Description: "随机生成的集群 " + GenerateRandomID(10, 5),
	}

	n := rand.Intn(9) + 2
	cluster.Workers = make([]domain.ClusterWorker, n)
	for i := range cluster.Workers {
		cluster.Workers[i] = domain.ClusterWorker{
			Name:          fmt.Sprintf("vm-%d", i),
			Mips:          mipsChoices[rand.Intn(len(mipsChoices))],
			CostPerSecond: 2 + rand.Float64()*2, // 2.0 ~ 4.0
		}
	}

	return cluster
}

// GenerateRandomRun 在集群上生成一个待执行的优化任务
func GenerateRandomRun(clusterID, createdBy int64) *domain.OptimizationRun {
	alg := scheduler.Algorithms[rand.Intn(len(scheduler.Algorithms))]
	params := scheduler.DefaultParameters(alg)
	params.Seed = rand.Uint64()
	params.Iterations = rand.Intn(50) + 10

	return &domain.OptimizationRun{
		ClusterID:  clusterID,
		Algorithm:  alg,
		JobCount:   rand.Intn(90) + 10,
		JobLength:  scheduler.DefaultJobLength,
		Parameters: params,
		CreatedBy:  createdBy,
	}
}
