// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package tremo configures a build environment for the ASR Tremo SDK on
// Cortex-M4 parts (ASR6601 and friends): it pins the arm-none-eabi
// toolchain, points the compiler at the SDK, registers the SDK and project
// sources, links the firmware image, converts it to a raw binary and adds an
// `upload` target driving the vendor's UART loader.
package tremo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tremokit.sh/buildenv"
	"tremokit.sh/internal/errs"
	"tremokit.sh/log"
	"tremokit.sh/platform"
)

// Name is the framework identifier used in the project's `framework` option.
const Name = "tremo"

const (
	DefaultDebugUART     = "UART0"
	DefaultUploadSpeed   = "921600"
	DefaultFlashAddress  = "0x08000000"
	DefaultUsePrintf     = "no"
	UploadTarget         = "upload"
	printfSource         = "printf-stdarg.c"
	logPrefix            = "asr"
	uploadTitle          = "Upload"
	uploadDescription    = "Upload firmware via tremo_loader over UART"
	uploadActionMessage  = "Uploading firmware"
	binActionDescription = "Generating BIN from ELF"
)

// Toolchain is the cross toolchain pinned by the framework.
var Toolchain = map[string]string{
	buildenv.CC:      "arm-none-eabi-gcc",
	buildenv.CXX:     "arm-none-eabi-g++",
	buildenv.AS:      "arm-none-eabi-gcc",
	buildenv.AR:      "arm-none-eabi-ar",
	buildenv.OBJCOPY: "arm-none-eabi-objcopy",
	buildenv.OBJDUMP: "arm-none-eabi-objdump",
	buildenv.SIZE:    "arm-none-eabi-size",
}

// archFlags select the Cortex-M4 core with single precision FPU, soft-float
// calling convention.
var archFlags = []string{
	"-mcpu=cortex-m4",
	"-mthumb",
	"-mfpu=fpv4-sp-d16",
	"-mfloat-abi=softfp",
}

// CCFlags are appended to every C and C++ compilation.
var CCFlags = append(append([]string{"-Wall", "-Os"}, archFlags...),
	"-ffunction-sections",
	"-fdata-sections",
	"-std=gnu99",
	"-fno-builtin-printf",
	"-fno-builtin-sprintf",
	"-fno-builtin-snprintf",
)

// printfWrapFlags route the libc formatting functions to the SDK's own
// implementation.
var printfWrapFlags = []string{
	"-Wl,--wrap=printf",
	"-Wl,--wrap=sprintf",
	"-Wl,--wrap=snprintf",
}

func init() {
	if err := platform.Register(Name, Configure); err != nil {
		panic(err)
	}
}

// SDK holds the directory layout of the Tremo SDK.
type SDK struct {
	Root      string
	CMSIS     string
	System    string
	PeriphInc string
	PeriphSrc string
	CryptoInc string
	CryptoLib string
	LDScript  string
}

// NewSDK derives the SDK layout from its root.  The derived paths are not
// checked for existence.
func NewSDK(root string) SDK {
	drivers := filepath.Join(root, "drivers")

	return SDK{
		Root:      root,
		CMSIS:     filepath.Join(root, "CMSIS"),
		System:    filepath.Join(root, "system"),
		PeriphInc: filepath.Join(drivers, "peripheral", "inc"),
		PeriphSrc: filepath.Join(drivers, "peripheral", "src"),
		CryptoInc: filepath.Join(drivers, "crypto", "inc"),
		CryptoLib: filepath.Join(drivers, "crypto", "lib"),
		LDScript:  filepath.Join(root, "ldscripts", "gcc.ld"),
	}
}

// LoaderPath returns the vendor loader script shipped with the platform.
func LoaderPath(platformDir string) string {
	return filepath.Join(platformDir, "builder", "scripts", "tremo_loader.py")
}

// UploadCommand renders the loader invocation.  Every operand except the
// flash address is double quoted; PYTHONEXE is resolved when the target runs.
func UploadCommand(loader, port, speed, address, bin string) string {
	return fmt.Sprintf(`"$PYTHONEXE" "%s" -p "%s" -b "%s" flash %s "%s"`, loader, port, speed, address, bin)
}

func logger(ctx context.Context) *logrus.Entry {
	return log.G(ctx).WithField(log.PrefixField, logPrefix)
}

// resolveFramework validates the `asr_framework_path` project option.
func resolveFramework(env *buildenv.Environment) (string, error) {
	path := env.GetProjectOption("asr_framework_path", "")
	if path == "" {
		return "", errs.Config("asr_framework_path not defined in platformio.ini")
	}

	if stat, err := os.Stat(path); err != nil || !stat.IsDir() {
		return "", errs.Config("framework path does not exist: %s", path)
	}

	return path, nil
}

// Configure populates env for a Tremo SDK build.  A configuration error
// aborts before anything past the failing step is registered.
func Configure(ctx context.Context, env *buildenv.Environment) error {
	for key, value := range Toolchain {
		env.Replace(key, value)
	}

	root, err := resolveFramework(env)
	if err != nil {
		return err
	}

	logger(ctx).Infof("Using ASR framework at: %s", root)

	sdk := NewSDK(root)

	env.Append(buildenv.CPPPATH, sdk.CMSIS, sdk.System, sdk.PeriphInc, sdk.CryptoInc)
	env.Append(buildenv.CCFLAGS, CCFlags...)
	env.Append(buildenv.ASFLAGS, archFlags...)

	env.Replace(buildenv.LDSCRIPT_PATH, sdk.LDScript)
	env.Append(buildenv.LINKFLAGS, "-T"+sdk.LDScript, "-Wl,--gc-sections")
	env.Append(buildenv.LINKFLAGS, archFlags...)

	if _, err := env.BuildSources(ctx,
		filepath.Join(env.Subst("$BUILD_DIR"), "framework", "system"),
		sdk.System,
		"+<*>", "-<"+printfSource+">",
	); err != nil {
		return err
	}

	if strings.EqualFold(env.GetProjectOption("use_printf", DefaultUsePrintf), "yes") {
		logger(ctx).Info("printf support ENABLED")

		env.Append(buildenv.CPPDEFINES, "USE_PRINTF")
		env.Append(buildenv.LINKFLAGS, printfWrapFlags...)

		env.AppendBuildFiles(env.Object(
			filepath.Join(env.Subst("$BUILD_DIR"), "framework", "system", "printf-stdarg.o"),
			filepath.Join(sdk.System, printfSource),
		))
	} else {
		logger(ctx).Info("printf support DISABLED")
	}

	if _, err := env.BuildSources(ctx,
		filepath.Join(env.Subst("$BUILD_DIR"), "framework", "peripheral"),
		sdk.PeriphSrc,
	); err != nil {
		return err
	}

	env.Append(buildenv.LIBPATH, sdk.CryptoLib)
	env.Append(buildenv.LIBS, "crypto")

	debugUART := env.GetProjectOption("debug_uart", DefaultDebugUART)
	env.Append(buildenv.CPPDEFINES, "CONFIG_DEBUG_UART="+debugUART)
	logger(ctx).Infof("debug uart = %s", debugUART)

	if _, err := env.BuildSources(ctx,
		filepath.Join(env.Subst("$BUILD_DIR"), "src"),
		env.Subst("$PROJECT_SRC_DIR"),
	); err != nil {
		return err
	}

	elf := env.Program("$BUILD_DIR/${PROGNAME}.elf", env.BuildFiles())
	env.Default(elf)

	bin := env.Command("$BUILD_DIR/${PROGNAME}.bin", elf,
		buildenv.VerboseAction("$OBJCOPY -O binary $SOURCE $TARGET", binActionDescription),
	)
	env.Default(elf, bin)

	return registerUpload(env, bin)
}

func registerUpload(env *buildenv.Environment, bin *buildenv.Node) error {
	loader := LoaderPath(env.Subst("$PLATFORM_DIR"))

	port := strings.TrimSpace(env.GetProjectOption("upload_port", env.Subst("$UPLOAD_PORT")))
	if port == "" {
		return errs.Config("upload_port is not defined (e.g. /dev/ttyUSB0)")
	}

	speed := env.Subst("$UPLOAD_SPEED")
	if speed == "" {
		speed = DefaultUploadSpeed
	}
	speed = strings.TrimSpace(env.GetProjectOption("upload_speed", speed))

	address := env.BoardConfig().Get("upload.offset_address", DefaultFlashAddress)

	return env.AddCustomTarget(buildenv.CustomTarget{
		Name:         UploadTarget,
		Title:        uploadTitle,
		Description:  uploadDescription,
		Dependencies: []*buildenv.Node{bin},
		Actions: []buildenv.Action{
			buildenv.VerboseAction(UploadCommand(loader, port, speed, address, bin.Path), uploadActionMessage),
		},
	})
}
