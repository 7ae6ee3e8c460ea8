package cache

func SecretKey(memberID, deviceID string) string { return "sk:" + memberID + ":" + deviceID }

func OTPKey(email string) string { return "otp:" + email }

func OTPAttemptsKey(email string) string { return "otp:attempts:" + email }

func MemberKey(memberID string) string { return "member:" + memberID }
