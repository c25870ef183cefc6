// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package language

// Default returns the standard registry. Five languages are
// executable: python and javascript run through their interpreters,
// java, c, and cpp compile first. Everything else is registered for
// editing (extension, starter code, syntax identity) but rejects
// execution requests.
func Default() *Registry {
	return New([]Language{
		{
			ID:          "python",
			DisplayName: "Python",
			Extension:   "py",
			Starter:     "print('Hello, CodeShare from Python!')",
			Toolchain: Toolchain{
				Kind: Interpreted,
				Run:  []string{"python", PlaceholderSource},
			},
		},
		{
			ID:          "javascript",
			DisplayName: "JavaScript",
			Extension:   "js",
			Starter:     "console.log('Hello, CodeShare from JavaScript!');",
			Toolchain: Toolchain{
				Kind: Interpreted,
				Run:  []string{"node", PlaceholderSource},
			},
		},
		{
			ID:          "java",
			DisplayName: "Java",
			Extension:   "java",
			Starter: `public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, CodeShare from Java!");
    }
}`,
			Toolchain: Toolchain{
				Kind:       Compiled,
				Compile:    []string{"javac", PlaceholderSource},
				Run:        []string{"java", "-cp", PlaceholderDir, "Main"},
				Artifact:   "Main.class",
				SourceName: "Main.java",
			},
		},
		{
			ID:          "c",
			DisplayName: "C",
			Extension:   "c",
			Starter:     "#include <stdio.h>\n\nint main() {\n    printf(\"Hello, CodeShare from C!\\n\");\n    return 0;\n}",
			Toolchain: Toolchain{
				Kind:     Compiled,
				Compile:  []string{"cc", PlaceholderSource, "-o", PlaceholderArtifact},
				Run:      []string{PlaceholderArtifact},
				Artifact: "a.out",
			},
		},
		{
			ID:          "cpp",
			DisplayName: "C++",
			Extension:   "cpp",
			Starter: `#include <iostream>

int main() {
    std::cout << "Hello, CodeShare from C++!" << std::endl;
    return 0;
}`,
			Toolchain: Toolchain{
				Kind:     Compiled,
				Compile:  []string{"c++", PlaceholderSource, "-o", PlaceholderArtifact},
				Run:      []string{PlaceholderArtifact},
				Artifact: "a.out",
			},
		},
		{
			ID:          "typescript",
			DisplayName: "TypeScript",
			Extension:   "ts",
			Starter:     "console.log(\"Hello, CodeShare from TypeScript!\");",
		},
		{
			ID:          "csharp",
			DisplayName: "C#",
			Extension:   "cs",
			Starter: `using System;

public class Program
{
    public static void Main(string[] args)
    {
        Console.WriteLine("Hello, CodeShare from C#!");
    }
}`,
		},
		{
			ID:          "go",
			DisplayName: "Go",
			Extension:   "go",
			Starter: `package main

import "fmt"

func main() {
    fmt.Println("Hello, CodeShare from Go!")
}`,
		},
		{
			ID:          "rust",
			DisplayName: "Rust",
			Extension:   "rs",
			Starter:     "fn main() {\n    println!(\"Hello, CodeShare from Rust!\");\n}",
		},
		{
			ID:          "ruby",
			DisplayName: "Ruby",
			Extension:   "rb",
			Starter:     "puts \"Hello, CodeShare from Ruby!\"",
		},
		{
			ID:          "php",
			DisplayName: "PHP",
			Extension:   "php",
			Starter:     "<?php\n\necho \"Hello, CodeShare from PHP!\";\n\n?>",
		},
		{
			ID:          "swift",
			DisplayName: "Swift",
			Extension:   "swift",
			Starter:     "import Swift\n\nprint(\"Hello, CodeShare from Swift!\")",
		},
		{
			ID:          "kotlin",
			DisplayName: "Kotlin",
			Extension:   "kt",
			Starter:     "fun main() {\n    println(\"Hello, CodeShare from Kotlin!\")\n}",
		},
		{
			ID:          "scala",
			DisplayName: "Scala",
			Extension:   "scala",
			Starter:     "object Main extends App {\n  println(\"Hello, CodeShare from Scala!\")\n}",
		},
		{
			ID:          "r",
			DisplayName: "R",
			Extension:   "r",
			Starter:     "print(\"Hello, CodeShare from R!\")",
		},
		{
			ID:          "dart",
			DisplayName: "Dart",
			Extension:   "dart",
			Starter:     "void main() {\n  print('Hello, CodeShare from Dart!');\n}",
		},
		{
			ID:          "elixir",
			DisplayName: "Elixir",
			Extension:   "ex",
			Starter:     "IO.puts \"Hello, CodeShare from Elixir!\"",
		},
		{
			ID:          "haskell",
			DisplayName: "Haskell",
			Extension:   "hs",
			Starter:     "main :: IO ()\nmain = putStrLn \"Hello, CodeShare from Haskell!\"",
		},
		{
			ID:          "lua",
			DisplayName: "Lua",
			Extension:   "lua",
			Starter:     "print(\"Hello, CodeShare from Lua!\")",
		},
		{
			ID:          "perl",
			DisplayName: "Perl",
			Extension:   "pl",
			Starter:     "print \"Hello, CodeShare from Perl!\\n\";",
		},
		{
			ID:          FallbackID,
			DisplayName: "Plain Text",
			Extension:   "txt",
			Starter:     "// Hello, CodeShare!",
		},
	})
}
